package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pixers-assistant/internal/adapters/telegram"
	"github.com/kirillkom/pixers-assistant/internal/bootstrap"
	"github.com/kirillkom/pixers-assistant/internal/config"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
	"github.com/kirillkom/pixers-assistant/internal/core/usecase"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/captionapi"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pixers-assistant/internal/observability/logging"
)

var errMissingToken = errors.New("TELEGRAM_BOT_TOKEN is required")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error("bot_failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bot",
		Short:         "Run the post-publishing Telegram bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), config.Load())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "chat-id",
		Short: "Print the id of every chat that messages the bot, then set TELEGRAM_GROUP_CHAT_ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watchChats(cmd.Context(), config.Load(), cmd.OutOrStdout())
		},
	})
	return root
}

func runBot(parent context.Context, cfg config.Config) error {
	logging.Setup("bot", cfg.LogLevel)
	if cfg.TelegramBotToken == "" {
		return errMissingToken
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var captions ports.CaptionService
	if cfg.CaptionAPIURL != "" {
		captions = captionapi.New(cfg.CaptionAPIURL, captionapi.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		})
		slog.Info("caption_source", "mode", "http", "url", captionapi.NormalizeBaseURL(cfg.CaptionAPIURL))
	} else {
		core, err := bootstrap.NewCore(ctx, cfg, bootstrap.Options{})
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer core.Close()
		captions = core.Captions
		slog.Info("caption_source", "mode", "in_process")
	}

	sessions, closeSessions, err := bootstrap.NewSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	tg, err := telegram.New(cfg.TelegramBotToken)
	if err != nil {
		return err
	}

	dialogue := usecase.NewDialogueUseCase(sessions, captions, tg.Publisher(cfg.TelegramGroupChatID))
	tg.Run(ctx, dialogue)
	return nil
}

func watchChats(parent context.Context, cfg config.Config, out io.Writer) error {
	slog.SetDefault(logging.NewLogger(os.Stderr, "bot", cfg.LogLevel))
	if cfg.TelegramBotToken == "" {
		return errMissingToken
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tg, err := telegram.New(cfg.TelegramBotToken)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	tg.WatchChats(ctx, func(chat telegram.ChatInfo) {
		if err := encoder.Encode(chat); err != nil {
			slog.Warn("chat_report_failed", "chat_id", chat.ID, "error", err)
		}
	})
	return nil
}
