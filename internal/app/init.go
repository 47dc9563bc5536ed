package app

import (
	"context"
	"log/slog"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
	"github.com/nulpointcorp/llm-mux-gateway/internal/metrics"
	"github.com/nulpointcorp/llm-mux-gateway/internal/providers"
	"github.com/nulpointcorp/llm-mux-gateway/internal/proxy"
	"github.com/nulpointcorp/llm-mux-gateway/internal/ratelimit"
	"github.com/nulpointcorp/llm-mux-gateway/internal/reqlog"
)

// initProviders builds the fixed set of CLI adapters, all sharing one
// CLIExecutor.
func (a *App) initProviders(_ context.Context) error {
	a.provs = providers.New(executor.New())

	names := make([]string, 0, len(a.provs))
	for n := range a.provs {
		names = append(names, n)
	}
	a.log.Info("providers loaded", slog.Any("providers", names))

	return nil
}

// initServices builds the rate-limit registry from the parsed config, the
// Prometheus metrics registry, and the async request logger.
func (a *App) initServices(ctx context.Context) error {
	a.limiter = ratelimit.NewRegistry()
	for _, p := range a.cfg.Providers {
		if p.SupportsAutoModel {
			a.limiter.Register(ratelimit.Key(p.Name, proxy.AutoModelKey), ratelimit.Limits{
				RPS: p.RPS, RPM: p.RPM, Concurrent: p.Concurrent,
			})
		}
		for _, m := range p.Models {
			a.limiter.Register(ratelimit.Key(p.Name, m.Name), ratelimit.Limits{
				RPS: m.RPS, RPM: m.RPM, Concurrent: m.Concurrent,
			})
		}
	}

	a.prom = metrics.New()
	a.prom.SetBuildInfo(a.version)

	reqLogger, err := reqlog.New(a.baseCtx, a.log)
	if err != nil {
		return err
	}
	a.reqLogger = reqLogger

	return nil
}

// initGateway wires together the Gateway with all configured subsystems.
func (a *App) initGateway(_ context.Context) error {
	settings := proxy.BuildSettings(a.cfg)

	a.gw = proxy.New(a.provs, settings, a.limiter, a.log, a.prom, a.reqLogger)

	a.mgmt = &proxy.ManagementRoutes{
		Metrics: a.prom.Handler(),
	}

	return nil
}
