package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/config"
	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/observability/metrics"
)

type answererFake struct {
	outcome domain.AnswerOutcome
	delay   time.Duration
	input   string
}

func (f *answererFake) Answer(ctx context.Context, input string) domain.AnswerOutcome {
	f.input = input
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.outcome
}

type captionFake struct {
	caption domain.Caption
	err     error
	req     domain.CaptionRequest
}

func (f *captionFake) GenerateCaption(_ context.Context, req domain.CaptionRequest) (domain.Caption, error) {
	f.req = req
	return f.caption, f.err
}

type ingestFake struct {
	err  error
	body string
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.body = string(raw)
	return &domain.Document{ID: "doc-1", Filename: filename, MimeType: mimeType, Status: domain.StatusUploaded}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "guide.pdf", Status: domain.StatusReady, ChunkCount: 12}, nil
}

type routerDeps struct {
	answerer *answererFake
	captions *captionFake
	ingestor *ingestFake
	docs     docsFake
}

func newTestHandler(t *testing.T, cfg config.Config, deps routerDeps) http.Handler {
	t.Helper()
	if deps.answerer == nil {
		deps.answerer = &answererFake{}
	}
	if deps.captions == nil {
		deps.captions = &captionFake{}
	}
	if deps.ingestor == nil {
		deps.ingestor = &ingestFake{}
	}
	handler, err := NewRouter(cfg, deps.answerer, deps.captions, deps.ingestor, deps.docs).
		WithMetrics(metrics.NewHTTPServerMetrics("api-test")).
		Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestIndexAndAbout(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, routerDeps{})

	for path, want := range map[string]string{"/": indexGreeting, "/about": aboutText} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
		if res.Code != http.StatusOK || res.Body.String() != want {
			t.Fatalf("GET %s: expected 200 %q, got %d %q", path, want, res.Code, res.Body.String())
		}
	}
}

func TestHealthzSetsRequestID(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, routerDeps{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestGenerateCaption(t *testing.T) {
	captions := &captionFake{caption: domain.Caption{Text: "Fresh pixels!"}}
	handler := newTestHandler(t, config.Config{}, routerDeps{captions: captions})

	res := postJSON(t, handler, "/generate_caption", map[string]string{"tone": "casual", "length": "short"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["caption"] != "Fresh pixels!" || body["degraded"] != false {
		t.Fatalf("unexpected body: %v", body)
	}
	if captions.req.Tone != "casual" || captions.req.Length != "short" {
		t.Fatalf("unexpected request: %+v", captions.req)
	}
}

func TestGenerateCaptionValidatesBody(t *testing.T) {
	captions := &captionFake{}
	handler := newTestHandler(t, config.Config{}, routerDeps{captions: captions})

	res := postJSON(t, handler, "/generate_caption", map[string]string{"tone": "casual"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if captions.req.Tone != "" {
		t.Fatalf("caption service must not be called for invalid body")
	}
}

func TestQueryRAGDegradedIsStill200(t *testing.T) {
	answerer := &answererFake{outcome: domain.AnswerOutcome{State: domain.StateApology, Text: "Sorry", Degraded: true, Error: true}}
	handler := newTestHandler(t, config.Config{}, routerDeps{answerer: answerer})

	res := postJSON(t, handler, "/v1/rag/query", map[string]string{"question": "How do I renew my visa?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body queryResponse
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Degraded || !body.Error || body.Answer != "Sorry" || body.Sources == nil {
		t.Fatalf("unexpected body: %+v", body)
	}
	if answerer.input != "How do I renew my visa?" {
		t.Fatalf("unexpected answerer input %q", answerer.input)
	}
}

func TestQueryRAGRequestBudgetExhausted(t *testing.T) {
	answerer := &answererFake{delay: time.Second}
	handler := newTestHandler(t, config.Config{RequestTimeout: 20 * time.Millisecond}, routerDeps{answerer: answerer})

	res := postJSON(t, handler, "/v1/rag/query", map[string]string{"question": "q"})
	if res.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", res.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil || body.Error == "" {
		t.Fatalf("expected error body, got %q", res.Body.String())
	}
}

func TestUploadDocument(t *testing.T) {
	ingestor := &ingestFake{}
	handler := newTestHandler(t, config.Config{}, routerDeps{ingestor: ingestor})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "guide.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("visa renewal steps"))
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if ingestor.body != "visa renewal steps" {
		t.Fatalf("unexpected uploaded body %q", ingestor.body)
	}
}

func TestUploadDocumentMissingFile(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, routerDeps{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("note", "no file")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "found", want: http.StatusOK},
		{name: "not found", err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("doc-9")), want: http.StatusNotFound},
		{name: "temporary", err: domain.WrapError(domain.ErrTemporary, "get", errors.New("db down")), want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(t, config.Config{}, routerDeps{docs: docsFake{err: tc.err}})
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/doc-9", nil))
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			if tc.want == http.StatusInternalServerError && strings.Contains(res.Body.String(), "boom") {
				t.Fatalf("5xx body must not leak internal error: %s", res.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, routerDeps{})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "pas_http_requests_total") {
		t.Fatalf("expected pas metrics, got %d", res.Code)
	}
}
