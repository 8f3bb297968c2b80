package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
)

type Options struct {
	BaseURL            string
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
	MaxTokens          int
}

// Client wraps the OpenAI API for both embeddings and chat completions.
// The same embedding model must serve ingestion and queries.
type Client struct {
	api        *goopenai.Client
	chatModel  string
	embedModel string
	maxTokens  int
	executor   *resilience.Executor
}

func New(apiKey, chatModel, embedModel string, opts Options) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	cfg.HTTPClient = httpClient

	return &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
		maxTokens:  opts.MaxTokens,
		executor:   opts.ResilienceExecutor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp goopenai.EmbeddingResponse
	err := e.client.call(ctx, "openai.embed", func(callCtx context.Context) error {
		var err error
		resp, err = e.client.api.CreateEmbeddings(callCtx, goopenai.EmbeddingRequest{
			Input: texts,
			Model: goopenai.EmbeddingModel(e.client.embedModel),
		})
		return err
	})
	if err != nil {
		return nil, domain.WrapCallError(domain.ErrEmbeddingFailure, "openai.embed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrEmbeddingFailure,
			"openai.embed",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		)
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, domain.WrapError(domain.ErrEmbeddingFailure, "openai.embed", fmt.Errorf("embedding index %d out of range", item.Index))
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: prompt})

	req := goopenai.ChatCompletionRequest{
		Model:    g.client.chatModel,
		Messages: messages,
	}
	if g.client.maxTokens > 0 {
		req.MaxTokens = g.client.maxTokens
	}

	var resp goopenai.ChatCompletionResponse
	err := g.client.call(ctx, "openai.chat", func(callCtx context.Context) error {
		var err error
		resp, err = g.client.api.CreateChatCompletion(callCtx, req)
		return err
	})
	if err != nil {
		return "", domain.WrapCallError(domain.ErrGenerationFailure, "openai.chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrGenerationFailure, "openai.chat", fmt.Errorf("empty choices"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyOpenAIError)
}
