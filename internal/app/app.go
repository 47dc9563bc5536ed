// Package app wires up all subsystems and owns the application lifecycle.
//
// Startup order:
//  1. initProviders — executor + the three CLI adapters
//  2. initServices  — rate-limit registry, metrics, async request logger
//  3. initGateway   — proxy handler + management routes
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nulpointcorp/llm-mux-gateway/internal/config"
	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
	"github.com/nulpointcorp/llm-mux-gateway/internal/metrics"
	"github.com/nulpointcorp/llm-mux-gateway/internal/providers"
	"github.com/nulpointcorp/llm-mux-gateway/internal/proxy"
	"github.com/nulpointcorp/llm-mux-gateway/internal/ratelimit"
	"github.com/nulpointcorp/llm-mux-gateway/internal/reqlog"
)

// droppedLogPollInterval is how often Run samples the request logger's
// cumulative dropped-entry count and forwards the delta into Prometheus.
const droppedLogPollInterval = 5 * time.Second

// App owns all long-lived resources and exposes Run / Close.
type App struct {
	version string
	cfg     *config.Config
	baseCtx context.Context
	log     *slog.Logger

	reqLogger *reqlog.Logger
	prom      *metrics.Registry
	limiter   *ratelimit.Registry

	provs map[string]providers.Provider
	mgmt  *proxy.ManagementRoutes
	gw    *proxy.Gateway
}

// New initialises all subsystems and returns a ready-to-run App. All
// resources allocated here are released by Close.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, version string) (*App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("app: context must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	a := &App{cfg: cfg, version: version, baseCtx: ctx, log: log}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"providers", a.initProviders},
		{"services", a.initServices},
		{"gateway", a.initGateway},
	}

	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: init %s: %w", s.name, err)
		}
	}

	return a, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or an error
// occurs. It closes the app gracefully when returning.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)

	a.log.Info("starting gateway",
		slog.String("version", a.version),
		slog.String("addr", addr),
		slog.Int("providers", len(a.provs)),
	)

	// Captured before Close (run from the shutdown goroutine below) can nil
	// out a.reqLogger, so the poller never races that field.
	reqLogger, prom := a.reqLogger, a.prom

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.gw.StartWithRoutes(addr, a.mgmt)
	})

	g.Go(func() error {
		<-gctx.Done()
		if err := a.gw.Shutdown(); err != nil {
			a.log.Error("gateway shutdown error", slog.String("error", err.Error()))
		}
		a.Close()
		return nil
	})

	g.Go(func() error {
		pollDroppedLogs(gctx, reqLogger, prom)
		return nil
	})

	return g.Wait()
}

// pollDroppedLogs periodically forwards the request logger's cumulative
// dropped-entry count into the Prometheus counter as a delta, since the
// logger only tracks the running total. It returns once ctx is done.
func pollDroppedLogs(ctx context.Context, reqLogger *reqlog.Logger, prom *metrics.Registry) {
	if reqLogger == nil || prom == nil {
		return
	}

	ticker := time.NewTicker(droppedLogPollInterval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total := reqLogger.DroppedLogs()
			prom.AddDroppedLogEntries(total - last)
			last = total
		}
	}
}

// Close releases all resources in reverse-init order. Safe to call multiple
// times.
func (a *App) Close() {
	if a.reqLogger != nil {
		if err := a.reqLogger.Close(); err != nil {
			a.log.Error("request logger close error", slog.String("error", err.Error()))
		}
		a.reqLogger = nil
	}
}
