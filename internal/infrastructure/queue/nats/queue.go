package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
)

type Queue struct {
	conn       *nats.Conn
	subject    string
	group      string
	jobTimeout time.Duration
	executor   *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	JobTimeout           time.Duration
	ResilienceExecutor   *resilience.Executor
}

// ingestJob is the message body on the ingest subject.
type ingestJob struct {
	DocumentID string    `json:"document_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	group := options.QueueGroup
	if group == "" {
		group = "ingest-workers"
	}

	conn, err := nats.Connect(
		url,
		nats.Name("pixers-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:       conn,
		subject:    subject,
		group:      group,
		jobTimeout: options.JobTimeout,
		executor:   options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishIngestJob(ctx context.Context, documentID string) error {
	payload, err := encodeJob(documentID, time.Now().UTC())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return publishError(err)
}

// SubscribeIngestJobs blocks until ctx is done, then drains the subscription
// so in-flight jobs finish.
func (q *Queue) SubscribeIngestJobs(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		documentID, err := decodeJob(msg.Data)
		if err != nil {
			slog.Error("ingest_job_decode_failed", "error", err)
			return
		}

		handlerCtx, cancel := q.handlerContext(ctx)
		defer cancel()
		if err := handler(handlerCtx, documentID); err != nil {
			slog.Error("ingest_job_failed", "document_id", documentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// handlerContext detaches jobs from shutdown cancellation so a drained job can
// finish its upserts; the job timeout still bounds it.
func (q *Queue) handlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(parent)
	if q.jobTimeout > 0 {
		return context.WithTimeout(base, q.jobTimeout)
	}
	return context.WithCancel(base)
}

func encodeJob(documentID string, at time.Time) ([]byte, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("nats publish: empty document id")
	}
	payload, err := json.Marshal(ingestJob{DocumentID: documentID, EnqueuedAt: at})
	if err != nil {
		return nil, fmt.Errorf("marshal ingest job: %w", err)
	}
	return payload, nil
}

// decodeJob also accepts a bare document id.
func decodeJob(data []byte) (string, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", fmt.Errorf("empty ingest job")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	var job ingestJob
	if err := json.Unmarshal(data, &job); err != nil {
		return "", fmt.Errorf("unmarshal ingest job: %w", err)
	}
	if job.DocumentID == "" {
		return "", fmt.Errorf("ingest job without document_id")
	}
	return job.DocumentID, nil
}
