// Command driftwired runs the pub/sub server daemon.
//
// Configuration comes from an optional YAML file (-config), with PORT, HOST,
// LOG_LEVEL, and LOG_FORMAT environment variables taking precedence. When a
// config file is given it is watched, and rate-limit changes apply to the
// running server without a restart.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/internal/config"
	"github.com/driftwire/driftwire/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	applyEnv(cfg)
	setupLogger(cfg.Log)

	srv := ws.New(&ws.Config{
		Host:             cfg.Server.Host,
		Port:             cfg.Server.Port,
		RateLimit:        rateLimitOf(cfg),
		PollInterval:     cfg.Server.PollInterval,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		Logger:           slog.Default(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		slog.Error("server start", "error", err)
		os.Exit(1)
	}
	slog.Info("listening", "addr", srv.Addr().String())

	if *configPath != "" {
		go watchConfig(ctx, *configPath, srv)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := srv.Stop(stopCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// watchConfig reapplies the governor thresholds whenever the file changes.
// Listener settings need a restart and are ignored here.
func watchConfig(ctx context.Context, path string, srv driftwire.Server) {
	err := config.Watch(ctx, path, func(cfg *config.Config) {
		limit := rateLimitOf(cfg)
		if err := srv.ApplyRateLimit(ctx, limit); err != nil {
			slog.Error("apply reloaded rate limit", "error", err)
			return
		}
		slog.Info("rate limit reloaded",
			"max_requests", limit.MaxRequests,
			"window_seconds", limit.WindowSeconds,
			"block_duration_seconds", limit.BlockDurationSeconds)
	})
	if err != nil {
		slog.Error("config watcher stopped", "error", err)
	}
}

func rateLimitOf(cfg *config.Config) driftwire.RateLimit {
	return driftwire.RateLimit{
		MaxRequests:          cfg.RateLimit.MaxRequests,
		WindowSeconds:        int(cfg.RateLimit.Window / time.Second),
		BlockDurationSeconds: int(cfg.RateLimit.BlockDuration / time.Second),
	}
}

// applyEnv lets the environment override file settings.
func applyEnv(cfg *config.Config) {
	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			slog.Warn("ignoring non-numeric PORT", "value", port)
		} else {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
}

func setupLogger(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
