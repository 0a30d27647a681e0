package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/scriptforge/internal/conversation"
	"github.com/user/scriptforge/internal/executor"
	"github.com/user/scriptforge/internal/preview"
	"github.com/user/scriptforge/internal/server"
	"github.com/user/scriptforge/internal/session"
	"github.com/user/scriptforge/internal/watcher"
	"github.com/user/scriptforge/internal/workspace"
	"github.com/user/scriptforge/pkg/llm"
	"github.com/user/scriptforge/pkg/llm/gemini"
	"github.com/user/scriptforge/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scriptforge server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.WorkspaceDir, 0755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}

	store := workspace.New(cfg.WorkspaceDir)
	sess := session.NewState()

	// LLM provider
	llmCfg := &llm.Config{
		BaseURL:         cfg.LLM.BaseURL,
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		TopP:            cfg.LLM.TopP,
		TopK:            cfg.LLM.TopK,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
	}
	var provider llm.Provider
	switch cfg.LLM.Provider {
	case "openai":
		provider = openai.New(llmCfg)
	case "gemini":
		llmCfg.SafetySettings = gemini.DefaultSafetySettings()
		provider = gemini.New(llmCfg)
	default:
		return fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey == "" {
		slog.Warn("no API key configured, chat will return configuration errors", "provider", cfg.LLM.Provider)
	}

	adapter := conversation.New(provider, conversation.Options{
		MaxContextTokens: cfg.LLM.MaxContextTokens,
		OutputReserve:    cfg.LLM.OutputReserve,
	})

	pv := preview.NewManager(store, preview.Options{
		PythonBin:       cfg.Preview.PythonBin,
		BasePort:        cfg.Preview.BasePort,
		MaxPortAttempts: cfg.Preview.MaxPortAttempts,
		StartupGrace:    time.Duration(cfg.Preview.StartupGraceSeconds) * time.Second,
		TerminateGrace:  time.Duration(cfg.Preview.TerminateGraceSeconds) * time.Second,
		KillGrace:       time.Duration(cfg.Preview.KillGraceSeconds) * time.Second,
	})
	defer pv.Stop()

	exec := executor.New(store, sess, pv)
	hub := server.NewHub()
	srv := server.NewServer(store, sess, adapter, exec, pv, hub)

	// External edits reach the UI through the watcher.
	fw := watcher.New(store, srv.OnWorkspaceChange)
	if err := fw.Start(); err != nil {
		return fmt.Errorf("start workspace watcher: %w", err)
	}
	defer fw.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Listen,
		Handler: srv,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("scriptforge started",
			"listen", cfg.HTTP.Listen,
			"workspace", cfg.WorkspaceDir,
			"log_level", cfg.LogLevel,
			"llm_provider", cfg.LLM.Provider,
			"llm_model", cfg.LLM.Model,
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
