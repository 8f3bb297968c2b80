package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/vector"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu  sync.Mutex
	dimension int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// EnsureIndex creates the collection with cosine distance. An existing
// collection must have been created with the same dimension.
func (c *Client) EnsureIndex(ctx context.Context, dimension int) error {
	const op = "qdrant.ensure_index"
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidConfiguration, op, fmt.Errorf("dimension must be positive, got %d", dimension))
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.dimension == dimension {
		return nil
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, body, err := c.do(ctx, http.MethodPut, c.collectionURL(), reqBody)
	if err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, err)
	}

	// 409 if the collection already exists (depends on version/config).
	if status == http.StatusConflict || (status >= 300 && strings.Contains(string(body), "already exists")) {
		existing, err := c.describeDimension(ctx)
		if err != nil {
			return err
		}
		if err := vector.CheckDimension(op, existing, dimension); err != nil {
			return err
		}
		c.dimension = dimension
		return nil
	}
	if status >= 300 {
		return domain.WrapError(domain.ErrIndexWriteFailure, op, statusError("ensure collection", status, body))
	}
	c.dimension = dimension
	return nil
}

func (c *Client) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	const op = "qdrant.upsert"
	if len(entries) == 0 {
		return nil
	}
	dimension, err := c.indexDimension(ctx)
	if err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	points := make([]point, 0, len(entries))
	for _, entry := range entries {
		if err := vector.CheckDimension(op, dimension, len(entry.Vector)); err != nil {
			return err
		}
		points = append(points, point{
			ID:     c.pointID(entry.ID),
			Vector: entry.Vector,
			Payload: map[string]any{
				"entry_id": entry.ID,
				"text":     entry.Metadata.Text,
				"source":   entry.Metadata.Source,
				"document": entry.Metadata.Document,
			},
		})
	}

	url := fmt.Sprintf("%s/points?wait=true", c.collectionURL())
	status, body, err := c.do(ctx, http.MethodPut, url, map[string]any{"points": points})
	if err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, err)
	}
	if status >= 300 {
		return domain.WrapError(domain.ErrIndexWriteFailure, op, statusError("upsert", status, body))
	}
	return nil
}

func (c *Client) Query(ctx context.Context, queryVector []float32, topK int) ([]domain.ScoredEntry, error) {
	const op = "qdrant.query"
	dimension, err := c.indexDimension(ctx)
	if err != nil {
		return nil, err
	}
	if err := vector.CheckDimension(op, dimension, len(queryVector)); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
	}
	url := fmt.Sprintf("%s/points/search", c.collectionURL())
	status, body, err := c.do(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, domain.WrapCallError(domain.ErrIndexQueryFailure, op, err)
	}
	if status >= 300 {
		return nil, domain.WrapError(domain.ErrIndexQueryFailure, op, statusError("search", status, body))
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, domain.WrapError(domain.ErrIndexQueryFailure, op, fmt.Errorf("decode search response: %w", err))
	}

	out := make([]domain.ScoredEntry, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredEntry{
			Entry: domain.IndexEntry{
				ID: getStringPayload(r.Payload, "entry_id"),
				Metadata: domain.EntryMetadata{
					Text:   getStringPayload(r.Payload, "text"),
					Source: getStringPayload(r.Payload, "source"),
				},
			},
			Score: r.Score,
		})
	}
	vector.SortMatches(out)
	return out, nil
}

// DeleteStale deletes the points of document that are not in keep using a
// payload filter.
func (c *Client) DeleteStale(ctx context.Context, document string, keep []string) error {
	const op = "qdrant.delete_stale"
	keepIDs := make([]string, 0, len(keep))
	for _, id := range keep {
		keepIDs = append(keepIDs, c.pointID(id))
	}

	filter := map[string]any{
		"must": []any{
			map[string]any{"key": "document", "match": map[string]any{"value": document}},
		},
	}
	if len(keepIDs) > 0 {
		filter["must_not"] = []any{map[string]any{"has_id": keepIDs}}
	}

	url := fmt.Sprintf("%s/points/delete?wait=true", c.collectionURL())
	status, body, err := c.do(ctx, http.MethodPost, url, map[string]any{"filter": filter})
	if err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, err)
	}
	if status >= 300 {
		return domain.WrapError(domain.ErrIndexWriteFailure, op, statusError("delete", status, body))
	}
	return nil
}

func (c *Client) indexDimension(ctx context.Context) (int, error) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.dimension > 0 {
		return c.dimension, nil
	}
	dimension, err := c.describeDimension(ctx)
	if err != nil {
		return 0, err
	}
	c.dimension = dimension
	return dimension, nil
}

func (c *Client) describeDimension(ctx context.Context) (int, error) {
	const op = "qdrant.describe"
	status, body, err := c.do(ctx, http.MethodGet, c.collectionURL(), nil)
	if err != nil {
		return 0, domain.WrapCallError(domain.ErrIndexQueryFailure, op, err)
	}
	if status >= 300 {
		return 0, domain.WrapError(domain.ErrIndexQueryFailure, op, statusError("describe collection", status, body))
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return 0, domain.WrapError(domain.ErrIndexQueryFailure, op, fmt.Errorf("decode collection info: %w", err))
	}
	return info.Result.Config.Params.Vectors.Size, nil
}

// pointID derives a stable UUID from the entry id; qdrant only accepts
// UUIDs or integers as point ids.
func (c *Client) pointID(entryID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.collection+"/"+entryID)).String()
}

func (c *Client) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
}

func (c *Client) do(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func statusError(operation string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 2048 {
		msg = msg[:2048]
	}
	if msg == "" {
		return fmt.Errorf("qdrant %s status: %d", operation, status)
	}
	return fmt.Errorf("qdrant %s status: %d: %s", operation, status, msg)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
