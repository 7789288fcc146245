package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"estimator/internal/httpserver"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "запустить HTTP API",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	a, err := newApp(os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:    logger,
		Provider:  a.provider,
		Estimator: a.service,
		Version:   version,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Ответ ждёт LLM, поэтому запас поверх LLM_TIMEOUT.
		WriteTimeout: cfg.LLM.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("provider", a.provider.Name()),
			slog.String("model", a.provider.Model()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
