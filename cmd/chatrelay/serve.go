package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/deadletter"
	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/llm"
	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/policy"
	store "github.com/AyeshaKanwal90/ChatAI/internal/repository"
	"github.com/AyeshaKanwal90/ChatAI/internal/service"
	transport "github.com/AyeshaKanwal90/ChatAI/internal/transport/http"
)

func newServeCommand() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.HTTPPort = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides HTTP_PORT)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting chat relay",
		"port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"llm_mode", cfg.LLMMode,
		"model", cfg.OpenAIModel)

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	sink, err := deadletter.New(ctx, cfg.RedisAddr, cfg.DeadLetterKey, log)
	if err != nil {
		log.Warn("dead-letter sink unavailable, failed writes will only be logged", "redis_addr", cfg.RedisAddr, "error", err)
		sink = deadletter.NopSink{}
	}
	defer sink.Close()

	svc := service.New(db, llm.NewLLMClient(cfg, log), policyEngine, sink, cfg, log)
	e := transport.NewServer(svc, cfg, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down chat relay")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to shut down server gracefully", "error", err)
		}
		// Let in-flight persistence finish before the store closes.
		if err := svc.Shutdown(shutdownCtx); err != nil {
			log.Warn("background writes still running at shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("chat relay stopped")
	return nil
}
