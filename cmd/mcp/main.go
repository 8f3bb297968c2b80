package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/pixers-assistant/internal/adapters/mcp"
	"github.com/kirillkom/pixers-assistant/internal/bootstrap"
	"github.com/kirillkom/pixers-assistant/internal/config"
	"github.com/kirillkom/pixers-assistant/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	// stdout carries the protocol.
	slog.SetDefault(logging.NewLogger(os.Stderr, "mcp", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Answerer, app.Captions, app.Documents)
	if err := server.ServeStdio(version); err != nil {
		slog.Error("mcp_server_failed", "error", err)
	}
}
