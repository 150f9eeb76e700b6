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

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/querysmith/querysmith/internal/adapters/llm"
	"github.com/querysmith/querysmith/internal/adapters/sqldb"
	"github.com/querysmith/querysmith/internal/config"
	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/services"
	"github.com/querysmith/querysmith/pkg/api"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting querysmithd")

	if err := run(logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Target database: the one the agent answers questions about.
	target, err := sqldb.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to open target database: %w", err)
	}
	defer target.Close()

	if cfg.SeedDemo {
		if err := sqldb.SeedDemo(ctx, target); err != nil {
			return fmt.Errorf("failed to seed demo schema: %w", err)
		}
		logger.Info("demo schema seeded")
	}

	// State database: run history and schedules, kept apart from the
	// target so the agent never sees its own bookkeeping tables.
	state, err := sqldb.Open(ctx, "sqlite", cfg.StateDSN)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer state.Close()

	runStore, err := sqldb.NewRunStore(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to init run store: %w", err)
	}
	schedStore, err := sqldb.NewScheduleStore(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to init schedule store: %w", err)
	}

	provider, err := llm.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build llm provider: %w", err)
	}

	catalog := sqldb.NewCatalog(target)
	executor := sqldb.NewExecutor(target)
	validator := services.NewQueryValidator()
	advisor := services.NewErrorRecoveryAdvisor()

	registry := domain.NewToolRegistry()
	if err := services.RegisterSQLTools(registry, catalog, executor, validator, advisor, cfg.QueryTimeout); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	eventBus := services.NewEventBus(logger)
	agent := services.NewReActAgent(logger, provider, registry, cfg.MaxIterations, cfg.LLMTimeout)
	facade := services.NewAgentService(logger, agent, runStore, eventBus)
	scheduler := services.NewCronScheduler(logger, schedStore, facade, eventBus)

	apiServer := api.NewServer(logger, facade, catalog, validator, runStore, schedStore, eventBus)
	handler, err := apiServer.Handler()
	if err != nil {
		return fmt.Errorf("failed to build http handler: %w", err)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: c.Handler(handler),
	}

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Scheduler loop for due questions
	g.Go(func() error {
		return scheduler.Run(gCtx)
	})

	// 2. API server
	g.Go(func() error {
		logger.Info("starting api server",
			"addr", cfg.HTTPAddr,
			"provider", cfg.Provider,
			"model", cfg.ModelID,
			"db_driver", cfg.DBDriver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	// 3. Graceful shutdown for the API server
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
