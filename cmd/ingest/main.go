package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pixers-assistant/internal/bootstrap"
	"github.com/kirillkom/pixers-assistant/internal/config"
	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/observability/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:           "ingest [--path file | file...]",
		Short:         "Chunk, embed and upsert local documents into the vector index",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if path != "" {
				paths = append([]string{path}, paths...)
			}
			if len(paths) == 0 {
				return errors.New("no input files: pass --path or file arguments")
			}
			return run(cmd.Context(), paths)
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "document to ingest (.txt, .md, .csv, .pdf, .xlsx, .html)")
	return cmd
}

type fileReport struct {
	Path string `json:"path"`
	domain.IngestReport
}

func run(parent context.Context, paths []string) error {
	cfg := config.Load()
	slog.SetDefault(logging.NewLogger(os.Stderr, "ingest", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := bootstrap.NewCore(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer core.Close()

	reports, ingestErr := core.Files.IngestFiles(ctx, paths)

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	for i, report := range reports {
		if err := encoder.Encode(fileReport{Path: paths[i], IngestReport: report}); err != nil {
			return err
		}
	}
	return ingestErr
}
