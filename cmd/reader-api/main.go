// Package main provides the page reader API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lectern-ai/page-reader/internal/config"
	"github.com/lectern-ai/page-reader/internal/credentials"
	"github.com/lectern-ai/page-reader/internal/explain"
	"github.com/lectern-ai/page-reader/internal/history"
	"github.com/lectern-ai/page-reader/internal/llm"
	"github.com/lectern-ai/page-reader/internal/observability"
	"github.com/lectern-ai/page-reader/internal/parser"
	"github.com/lectern-ai/page-reader/internal/pdf"
	"github.com/lectern-ai/page-reader/internal/server"
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("data_dir", cfg.Storage.DataDir).
		Msg("Starting page reader API")

	// Wire the pipeline: credentials -> resolver -> parsers -> streamer.
	credStore := credentials.NewStore()
	resolver := llm.NewResolver(credStore, cfg.LLM.AllowedProviders, logger)

	validator := pdf.NewValidator(cfg.Upload.MaxBytes)
	rasterizer := pdf.NewRasterizer(logger)
	structural := parser.NewStructural(logger)
	vision := parser.NewVision(rasterizer, resolver, cfg.LLM.MaxTokens, logger)
	facade := parser.NewFacade(validator, structural, vision)

	historyStore := history.NewStore(cfg.Storage.HistoryPath())
	streamer := explain.NewStreamer(resolver, historyStore, cfg.LLM.MaxTokens, logger)

	handler := server.NewHandler(logger, cfg, credStore, resolver, facade, streamer)
	router := server.NewRouter(handler, cfg, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
		// No write timeout: /explain-page holds the connection open while
		// the model streams.
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
