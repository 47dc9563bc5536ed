// Command gateway is the llm-mux HTTP gateway.
//
// It fronts the claude, codex, and gemini CLIs behind one JSON API: a
// client posts a prompt and a JSON Schema to /generate and receives back a
// structured object extracted from whichever CLI answered. Configuration is
// read from the TOML file named by LLM_MUX_CONFIG (./config.toml by
// default); a missing or malformed file is not fatal, it just means every
// provider is unconfigured and therefore rejected as unknown.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nulpointcorp/llm-mux-gateway/internal/app"
	"github.com/nulpointcorp/llm-mux-gateway/internal/config"
)

// version is overridden at build time via -ldflags="-X main.version=x.y.z".
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, warning := config.Load()

	logger := buildLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if warning != "" {
		logger.Warn("config load", slog.String("reason", warning))
	}

	a, err := app.New(ctx, cfg, logger, version)
	if err != nil {
		logger.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("gateway stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildLogger constructs a JSON slog.Logger for the given level string.
// Unknown level strings default to INFO.
func buildLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     l,
		AddSource: l == slog.LevelDebug,
	}))
}
