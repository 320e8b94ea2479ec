package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/Skufu/pillscope/internal/analysis"
	"github.com/Skufu/pillscope/internal/config"
	"github.com/Skufu/pillscope/internal/conversation"
	"github.com/Skufu/pillscope/internal/logging"
	"github.com/Skufu/pillscope/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var out io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	logger := logging.New(out, cfg.LogLevel)

	gen, err := analysis.NewGemini(context.Background(), analysis.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		return err
	}
	client, err := analysis.NewClient(gen)
	if err != nil {
		return err
	}

	session := conversation.NewSession(uuid.NewString(), client,
		conversation.WithTimeout(cfg.AnalysisTimeout),
		conversation.WithLogger(logger),
	)
	logger.Info("chat started", "session", session.ID(), "model", gen.Model())
	return tui.Run(session)
}
