// Сервис оценки проектов по ТЗ с помощью LLM.
//
// Использование:
//
//	estimator serve
//	estimator estimate --title "Todo App" --spec-file spec.txt [--start 2026-01-05]
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"estimator/internal/config"
	"estimator/internal/estimate"
	"estimator/internal/llm"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "estimator",
		Usage:   "оценка стоимости и сроков проекта по техническому заданию",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			estimateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// services — зависимости, общие для всех команд.
type services struct {
	cfg      config.Config
	logger   *slog.Logger
	provider llm.Provider
	service  *estimate.Service
}

func newApp(logOut io.Writer) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)

	rates, err := estimate.NewRateTable(cfg.Estimate.RoleRates)
	if err != nil {
		return nil, fmt.Errorf("invalid ROLE_RATES: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Estimate.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	provider, err := llm.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	service := estimate.NewService(estimate.ServiceConfig{
		Provider:     provider,
		Rates:        rates,
		HoursPerDay:  cfg.Estimate.HoursPerDay,
		Location:     loc,
		MaxSpecChars: cfg.Estimate.MaxSpecChars,
		Logger:       logger,
	})

	return &services{cfg: cfg, logger: logger, provider: provider, service: service}, nil
}

func newLogger(level, format string, out io.Writer) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: slogLevel}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}
