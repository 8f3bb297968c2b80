// Package mcpadapter exposes the assistant as Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

const (
	ToolAnswerQuestion    = "answer_question"
	ToolGenerateCaption   = "generate_caption"
	ToolGetDocumentStatus = "get_document_status"
)

type Server struct {
	answerer  ports.Answerer
	captions  ports.CaptionService
	documents ports.DocumentReader
}

// NewServer wires the tool handlers. documents may be nil, in which case the
// document status tool is not registered.
func NewServer(answerer ports.Answerer, captions ports.CaptionService, documents ports.DocumentReader) *Server {
	return &Server{answerer: answerer, captions: captions, documents: documents}
}

// MCPServer builds the protocol server with every tool registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"pixers-assistant",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool(ToolAnswerQuestion,
		mcp.WithDescription("Answer a question from the Pixers knowledge base, falling back to general knowledge when nothing relevant is indexed."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The user's question")),
	), s.answerQuestion)

	srv.AddTool(mcp.NewTool(ToolGenerateCaption,
		mcp.WithDescription("Generate a social media post caption."),
		mcp.WithString("tone", mcp.Required(), mcp.Description("Caption tone, for example casual or formal")),
		mcp.WithString("length", mcp.Required(), mcp.Description("Caption length, for example short or long")),
	), s.generateCaption)

	if s.documents != nil {
		srv.AddTool(mcp.NewTool(ToolGetDocumentStatus,
			mcp.WithDescription("Report the ingestion status of an uploaded document."),
			mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by the upload endpoint")),
		), s.getDocumentStatus)
	}
	return srv
}

// ServeStdio blocks serving the protocol over stdin/stdout.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) answerQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome := s.answerer.Answer(ctx, question)
	return jsonResult(map[string]any{
		"answer":      outcome.Text,
		"usedContext": outcome.UsedContext,
		"degraded":    outcome.Degraded,
		"sources":     outcome.Sources,
	})
}

func (s *Server) generateCaption(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tone, err := req.RequireString("tone")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	length, err := req.RequireString("length")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	caption, err := s.captions.GenerateCaption(ctx, domain.CaptionRequest{Tone: tone, Length: length})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		slog.Error("mcp_tool_failed", "tool", ToolGenerateCaption, "error", err)
		return mcp.NewToolResultError("caption generation failed"), nil
	}
	return mcp.NewToolResultText(caption.Text), nil
}

func (s *Server) getDocumentStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return mcp.NewToolResultError("document not found"), nil
		}
		slog.Error("mcp_tool_failed", "tool", ToolGetDocumentStatus, "error", err)
		return mcp.NewToolResultError("document lookup failed"), nil
	}
	return jsonResult(doc)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
