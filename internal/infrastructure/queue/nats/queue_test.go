package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

func TestJobCodecRoundTrip(t *testing.T) {
	payload, err := encodeJob("doc-42", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("encodeJob() error = %v", err)
	}
	id, err := decodeJob(payload)
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if id != "doc-42" {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestDecodeJobAcceptsBareID(t *testing.T) {
	id, err := decodeJob([]byte(" doc-7 \n"))
	if err != nil || id != "doc-7" {
		t.Fatalf("unexpected result %q, %v", id, err)
	}
	if _, err := decodeJob([]byte(`{"enqueued_at":"2026-10-16T00:00:00Z"}`)); err == nil {
		t.Fatalf("expected error for job without id")
	}
	if _, err := encodeJob(" ", time.Now()); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestClassifyPublishError(t *testing.T) {
	if class := classifyPublishError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !class.Retryable {
		t.Fatalf("closed connection must be retryable")
	}
	if class := classifyPublishError(context.Canceled); class.Retryable || class.RecordFailure {
		t.Fatalf("cancellation must not be retried or recorded")
	}
	if class := classifyPublishError(errors.New("bad subject")); class.Retryable {
		t.Fatalf("unknown errors must not be retried")
	}
}

func TestPublishErrorMarksConnectionFailuresTemporary(t *testing.T) {
	err := publishError(fmt.Errorf("publish: %w", nats.ErrNoServers))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	if err := publishError(errors.New("bad subject")); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("permanent error must not be temporary")
	}
}

func TestHandlerContextSurvivesParentCancellation(t *testing.T) {
	q := &Queue{jobTimeout: time.Second}
	parent, cancel := context.WithCancel(context.Background())
	ctx, done := q.handlerContext(parent)
	defer done()

	cancel()
	if ctx.Err() != nil {
		t.Fatalf("job context must not be cancelled with the subscriber")
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("job context must carry the job timeout")
	}
}
