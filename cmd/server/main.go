package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docx2dita/internal/api"
	"github.com/dgallion1/docx2dita/internal/config"
	"github.com/dgallion1/docx2dita/internal/decide"
	"github.com/dgallion1/docx2dita/internal/pipeline"
	"github.com/dgallion1/docx2dita/internal/substitute"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.ValidateServer(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prefs, err := substitute.OpenStore(cfg.PreferencesPath)
	if err != nil {
		log.Warn("preferences unreadable, starting with no rules", "path", cfg.PreferencesPath, "error", err)
	}

	// Open decisions go to the model when one is configured, and are
	// declined otherwise.
	var claude *decide.Claude
	var decider decide.Decider
	if cfg.AnthropicAPIKey != "" {
		claude = decide.NewClaude(cfg.AnthropicAPIKey, cfg.AnthropicModel, log,
			decide.WithTimeout(cfg.DecisionTimeout))
		decider = claude
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, decider, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, claude, prefs, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if claude != nil {
			claude.Close()
		}
	}()

	log.Info("starting docx2dita", "port", cfg.Port, "workers", cfg.WorkerCount, "llm", claude != nil)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
