/**
 * extractd - local Extraction Service
 *
 * Serves POST /api/extract/ for the TextScan workflow using Tesseract.
 *
 * Architecture:
 * - chi router with request ids, CORS and per-IP rate limiting
 * - semaphore-gated recognition (EXTRACTD_MAX_CONCURRENT)
 * - gosseract text-line recognition (EXTRACTD_LANGUAGES)
 *
 * Configuration comes from .env, an optional YAML file named by
 * TEXTSCAN_CONFIG, and the environment.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adverant/nexus/textscan/internal/config"
	"github.com/adverant/nexus/textscan/internal/logging"
	"github.com/adverant/nexus/textscan/internal/ocrserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "extractd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(os.Getenv("TEXTSCAN_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Configure(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := logging.NewLogger("extractd")

	if !ocrserver.TesseractAvailable() {
		logger.Warn("tesseract binary not found on PATH; recognition may fail")
	}

	srv := ocrserver.NewServer(&ocrserver.Config{
		Engine:         ocrserver.NewTesseractEngine(&ocrserver.TesseractConfig{Languages: cfg.ExtractdLanguages}),
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxConcurrent:  cfg.ExtractdMaxConcurrent,
		RateEvery:      cfg.ExtractdRateEvery,
		RateBurst:      cfg.ExtractdRateBurst,
		AllowedOrigin:  cfg.ExtractdAllowedOrigin,
	})

	httpServer := &http.Server{
		Addr:              cfg.ExtractdAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.RunLimiterCleanup(ctx, 5*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Extraction service listening",
			"addr", cfg.ExtractdAddr,
			"path", ocrserver.ExtractPath,
			"languages", cfg.ExtractdLanguages,
			"maxConcurrent", cfg.ExtractdMaxConcurrent)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Received shutdown signal, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}
