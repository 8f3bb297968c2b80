// Package captionapi calls the caption endpoint of a running API service.
package captionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
)

type Options struct {
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		baseURL:    NormalizeBaseURL(baseURL),
		httpClient: httpClient,
		executor:   opts.ResilienceExecutor,
	}
}

// NormalizeBaseURL trims the URL and defaults the scheme to https.
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("caption api status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (c *Client) GenerateCaption(ctx context.Context, req domain.CaptionRequest) (domain.Caption, error) {
	var caption domain.Caption
	call := func(callCtx context.Context) error {
		out, err := c.post(callCtx, req)
		if err != nil {
			return err
		}
		caption = out
		return nil
	}

	var err error
	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, "captionapi.generate_caption", call, classify)
	}
	if err != nil {
		var statusErr *statusError
		switch {
		case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest:
			return domain.Caption{}, domain.WrapError(domain.ErrInvalidInput, "captionapi.generate_caption", err)
		default:
			return domain.Caption{}, domain.WrapCallError(domain.ErrTemporary, "captionapi.generate_caption", err)
		}
	}
	return caption, nil
}

func (c *Client) post(ctx context.Context, payload domain.CaptionRequest) (domain.Caption, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Caption{}, fmt.Errorf("marshal caption request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate_caption", bytes.NewReader(body))
	if err != nil {
		return domain.Caption{}, fmt.Errorf("create caption request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.Caption{}, fmt.Errorf("caption request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.Caption{}, &statusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var caption domain.Caption
	if err := json.NewDecoder(resp.Body).Decode(&caption); err != nil {
		return domain.Caption{}, fmt.Errorf("decode caption response: %w", err)
	}
	return caption, nil
}

func classify(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{}
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		retryable := statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
