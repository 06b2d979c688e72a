package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dialogeval/evaluator/internal/annotation"
	"github.com/dialogeval/evaluator/internal/config"
	"github.com/dialogeval/evaluator/internal/storeclient"
	"github.com/dialogeval/evaluator/internal/tui"
	"github.com/dialogeval/evaluator/pkg/logger"
)

const defaultLogFile = "annotator.log"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	uploadPath := flag.String("upload", "", "upload a transcript file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := storeclient.New(cfg.Store.BaseURL, storeclient.WithTimeout(cfg.Store.Timeout))
	session := annotation.NewSession(client, annotation.SessionConfig{
		SubmitConcurrency: cfg.Review.SubmitConcurrency,
		StatusFanout:      cfg.Review.StatusFanout,
	})

	if *uploadPath != "" {
		logger.Init(cfg.Log.Level)
		if err := upload(ctx, session, *uploadPath); err != nil {
			logger.Error().Err(err).Str("file", *uploadPath).Msg("upload failed")
			os.Exit(1)
		}
		return
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = defaultLogFile
	}
	closer, err := logger.InitFile(cfg.Log.Level, logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	logger.Info().Str("store", cfg.Store.BaseURL).Msg("annotator started")
	program := tea.NewProgram(tui.New(ctx, session, cfg.Export.Dir), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		logger.Error().Err(err).Msg("annotator exited with error")
		fmt.Fprintf(os.Stderr, "annotator: %v\n", err)
		os.Exit(1)
	}
}

func upload(ctx context.Context, session *annotation.Session, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	id, report, err := session.Upload(ctx, raw)
	if err != nil {
		return err
	}
	if err := report.Err(); err != nil {
		logger.Warn().Err(err).Str("dialog_id", id).Msg("dialog uploaded but could not be reopened")
	}
	reviewed, total := session.Queue().Progress()
	logger.Info().Str("dialog_id", id).Int("reviewed", reviewed).Int("total", total).Msg("dialog uploaded")
	return nil
}
