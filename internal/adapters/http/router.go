package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/config"
	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
	"github.com/kirillkom/pixers-assistant/internal/observability/metrics"
)

const (
	indexGreeting       = "Hello, Pixers! We are cooking something up for you!"
	aboutText           = "About"
	maxUploadBytes      = 32 << 20
	backpressureWaitFor = 100 * time.Millisecond
)

type Router struct {
	cfg       config.Config
	answerer  ports.Answerer
	captions  ports.CaptionService
	ingestor  ports.DocumentIngestor
	documents ports.DocumentReader
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	answerer ports.Answerer,
	captions ports.CaptionService,
	ingestor ports.DocumentIngestor,
	documents ports.DocumentReader,
) *Router {
	return &Router{
		cfg:       cfg,
		answerer:  answerer,
		captions:  captions,
		ingestor:  ingestor,
		documents: documents,
	}
}

// WithMetrics enables /metrics and request instrumentation.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.index)
	mux.HandleFunc("GET /about", rt.about)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /generate_caption", rt.generateCaption)
	mux.HandleFunc("POST /v1/rag/query", rt.queryRAG)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)

	validator, err := newOpenAPIValidator(openAPIDocument)
	if err != nil {
		return nil, err
	}

	var handler http.Handler = mux
	handler = timeoutMiddleware(handler, rt.cfg.RequestTimeout)
	handler = validator.Middleware(handler)
	handler = backpressureMiddleware(handler, rt.cfg.HTTPMaxInFlight, backpressureWaitFor)

	var onReject func()
	if rt.metrics != nil {
		onReject = rt.metrics.RecordRateLimited
	}
	handler = rateLimitMiddleware(handler, rt.cfg.HTTPRateLimitRPS, rt.cfg.HTTPRateLimitBurst, onReject)

	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)

	root := http.NewServeMux()
	if rt.metrics != nil {
		root.Handle("GET /metrics", rt.metrics.Handler())
	}
	root.Handle("/", handler)
	return root, nil
}

func (rt *Router) index(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, indexGreeting)
}

func (rt *Router) about(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, aboutText)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) generateCaption(w http.ResponseWriter, r *http.Request) {
	var req domain.CaptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode caption request", err))
		return
	}

	caption, err := rt.captions.GenerateCaption(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if budgetExhausted(r.Context()) {
		writeError(w, r, fmt.Errorf("generate caption: %w", context.DeadlineExceeded))
		return
	}
	writeJSON(w, http.StatusOK, caption)
}

type queryResponse struct {
	Answer      string                    `json:"answer"`
	UsedContext bool                      `json:"usedContext"`
	Degraded    bool                      `json:"degraded"`
	Error       bool                      `json:"error"`
	Sources     []domain.RetrievalContext `json:"sources"`
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode query request", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "query", errors.New("question is required")))
		return
	}

	outcome := rt.answerer.Answer(r.Context(), req.Question)
	if budgetExhausted(r.Context()) {
		writeError(w, r, fmt.Errorf("answer query: %w", context.DeadlineExceeded))
		return
	}

	sources := outcome.Sources
	if sources == nil {
		sources = []domain.RetrievalContext{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Answer:      outcome.Text,
		UsedContext: outcome.UsedContext,
		Degraded:    outcome.Degraded,
		Error:       outcome.Error,
		Sources:     sources,
	})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "get document", errors.New("document id is required")))
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func budgetExhausted(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
