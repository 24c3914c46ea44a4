// Command prompthub runs the PromptHub API server.
//
// Configuration layers defaults, the YAML file named by PROMPTHUB_CONFIG and
// PROMPTHUB_* environment variables, later layers winning:
//
//	PROMPTHUB_ADDR          - listen address (default :8080)
//	PROMPTHUB_DB_PATH       - SQLite database file (default prompthub.db)
//	PROMPTHUB_REDIS_ADDR    - enables the version cache when set
//	PROMPTHUB_OTLP_ENDPOINT - enables trace export when set
//	LLM_API_KEY             - key for the OpenAI-compatible endpoint
//
// See the config package for the full list.
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

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/HyxiaoGe/prompthub/ai"
	"github.com/HyxiaoGe/prompthub/cache"
	"github.com/HyxiaoGe/prompthub/config"
	"github.com/HyxiaoGe/prompthub/logger"
	"github.com/HyxiaoGe/prompthub/projects"
	"github.com/HyxiaoGe/prompthub/prompts"
	"github.com/HyxiaoGe/prompthub/refs"
	"github.com/HyxiaoGe/prompthub/scene"
	"github.com/HyxiaoGe/prompthub/server"
	"github.com/HyxiaoGe/prompthub/store/sqlite"
	"github.com/HyxiaoGe/prompthub/telemetry"
	"github.com/HyxiaoGe/prompthub/template"
	"github.com/HyxiaoGe/prompthub/versions"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "prompthub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store ready", "db_path", cfg.DBPath)

	var versionCache *cache.VersionCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		versionCache = cache.NewVersionCache(client)
		logger.Info("version cache enabled", "redis_addr", cfg.RedisAddr)
	}

	if cfg.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.OTLPEndpoint, "prompthub")
		if err != nil {
			return fmt.Errorf("tracer provider: %w", err)
		}
		otel.SetTracerProvider(tp)
		telemetry.SetupPropagation()
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(flushCtx); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
		logger.Info("trace export enabled", "endpoint", cfg.OTLPEndpoint)
	}

	ai.Configure(cfg)

	renderer := template.NewRenderer()
	promptSvc := prompts.NewService(st, renderer)
	srv := server.New(cfg, server.Deps{
		Store:    st,
		Projects: projects.NewService(st),
		Prompts:  promptSvc,
		Scenes:   scene.NewService(st, renderer, versionCache),
		Refs:     refs.NewService(st),
		Versions: versions.NewService(st, versionCache),
		AI:       ai.NewService(st, promptSvc, cfg),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "api_prefix", cfg.APIPrefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
