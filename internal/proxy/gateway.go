// Package proxy is the gateway's HTTP entry point: it validates the
// request schema, selects a provider adapter, acquires an admission slot,
// invokes the adapter, validates its output, and maps every failure mode to
// a precise HTTP status.
package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
	"github.com/nulpointcorp/llm-mux-gateway/internal/metrics"
	"github.com/nulpointcorp/llm-mux-gateway/internal/providers"
	"github.com/nulpointcorp/llm-mux-gateway/internal/ratelimit"
	"github.com/nulpointcorp/llm-mux-gateway/internal/reqlog"
	"github.com/nulpointcorp/llm-mux-gateway/internal/schema"
	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

// contextFromRequest returns the context that bounds a provider subprocess
// call. fasthttp recycles *RequestCtx once the handler returns, so it is not
// used as the parent: the returned context derives from
// context.Background() and is cancelled only through the returned
// CancelFunc. A client closing its connection does not cancel it; the
// subprocess runs until it exits or its own timeout expires.
func contextFromRequest(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

// Gateway is the main proxy — all dependencies are injected via the
// constructor so they can be replaced with doubles in unit tests.
type Gateway struct {
	providers map[string]providers.Provider
	settings  Settings
	limiter   *ratelimit.Registry

	log       *slog.Logger
	metrics   *metrics.Registry
	reqLogger *reqlog.Logger

	srvMu sync.Mutex
	srv   *fasthttp.Server
}

// New builds a Gateway. metrics and reqLogger may be nil to disable them.
func New(provs map[string]providers.Provider, settings Settings, limiter *ratelimit.Registry, log *slog.Logger, m *metrics.Registry, rl *reqlog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		providers: provs,
		settings:  settings,
		limiter:   limiter,
		log:       log,
		metrics:   m,
		reqLogger: rl,
	}
}

type generateRequest struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Prompt   string         `json:"prompt"`
	Schema   map[string]any `json:"schema"`
}

type generateResponse struct {
	Output json.RawMessage `json:"output"`
}

func writeBadRequest(ctx *fasthttp.RequestCtx, message string) {
	ctx.SetStatusCode(fasthttp.StatusBadRequest)
	ctx.SetContentType("application/json")
	data, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{message})
	ctx.SetBody(data)
}

// HandleHealth answers GET /health unconditionally: the gateway has no
// external dependency to probe, since providers are local subprocesses
// spawned on demand, not long-lived connections.
func (g *Gateway) HandleHealth(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"status":"ok"}`)
}

// HandleGenerate implements the full admission-and-execution pipeline for
// POST /generate.
func (g *Gateway) HandleGenerate(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	reqID, _ := ctx.UserValue("request_id").(string)

	servedProvider, servedModel := "unknown", "unknown"
	if g.metrics != nil {
		g.metrics.IncInFlight()
		defer g.metrics.DecInFlight()
	}
	defer func() {
		status := ctx.Response.StatusCode()
		dur := time.Since(start)
		if g.metrics != nil {
			g.metrics.RecordRequest(servedProvider, servedModel, status, dur)
		}
		if g.reqLogger != nil {
			id, _ := uuid.Parse(reqID)
			g.reqLogger.Log(reqlog.Entry{
				RequestID: id,
				Provider:  servedProvider,
				Model:     servedModel,
				Status:    status,
				LatencyMs: dur.Milliseconds(),
				CreatedAt: time.Now(),
			})
		}
	}()

	var req generateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeBadRequest(ctx, "invalid JSON body: "+err.Error())
		return
	}
	if req.Provider == "" {
		writeBadRequest(ctx, "field 'provider' is required")
		return
	}
	if req.Prompt == "" {
		writeBadRequest(ctx, "field 'prompt' is required")
		return
	}
	if req.Schema == nil {
		writeBadRequest(ctx, "field 'schema' is required")
		return
	}
	servedProvider = req.Provider

	compiled, err := schema.Compile(req.Schema)
	if err != nil {
		apierr.Write(ctx, err.(*apierr.Error))
		return
	}

	prov, ok := g.providers[req.Provider]
	if !ok {
		apierr.Write(ctx, apierr.ProviderNotFound(req.Provider))
		return
	}

	var (
		guard       *ratelimit.Guard
		modelArg    string
		timeoutSecs uint64
	)

	if req.Model != "" {
		servedModel = req.Model
		ps, provOK := g.settings[req.Provider]
		ms, modelOK := ps.Models[req.Model]
		if !provOK || !modelOK {
			apierr.Write(ctx, apierr.ModelNotFound(req.Provider, req.Model))
			return
		}

		guard, err = g.limiter.TryAcquire(req.Provider, req.Model, time.Now())
		if err != nil {
			if g.metrics != nil {
				g.metrics.RecordRateLimitDenied(req.Provider, req.Model)
			}
			apierr.Write(ctx, err.(*apierr.Error))
			return
		}
		defer guard.Release()

		modelArg = req.Model
		timeoutSecs = ms.TimeoutSecs
	} else {
		servedModel = AutoModelKey
		ps, provOK := g.settings[req.Provider]
		if !provOK {
			// No settings entry at all: per the config contract, an
			// unconfigured provider is unbounded and assumed to support
			// auto-model, and an unregistered (provider, model) key bypasses
			// admission entirely.
			ps = ProviderSetting{SupportsAutoModel: true, TimeoutSecs: uint64(executor.DefaultTimeout / time.Second)}
		}
		if !ps.SupportsAutoModel {
			apierr.Write(ctx, apierr.AutoModelNotSupported(req.Provider))
			return
		}

		guard, err = g.limiter.TryAcquire(req.Provider, AutoModelKey, time.Now())
		if err != nil {
			// Auto-model admission denial is treated the same as the
			// explicit-model branch: deny with 429. The original design this
			// was adapted from let the request proceed without a guard on
			// denial here, silently bypassing the limit; that looked like a
			// bug rather than an intended best-effort mode, so it is not
			// reproduced.
			if g.metrics != nil {
				g.metrics.RecordRateLimitDenied(req.Provider, AutoModelKey)
			}
			apierr.Write(ctx, err.(*apierr.Error))
			return
		}
		defer guard.Release()

		modelArg = ""
		timeoutSecs = ps.TimeoutSecs
	}

	timeout := time.Duration(timeoutSecs) * time.Second

	provCtx, cancel := contextFromRequest(ctx)
	defer cancel()

	output, err := prov.Execute(provCtx, req.Prompt, compiled.Raw(), modelArg, timeout)
	if err != nil {
		if apiErr, ok := err.(*apierr.Error); ok {
			apierr.Write(ctx, apiErr)
			return
		}
		apierr.Write(ctx, apierr.ProviderExecution(err.Error(), ""))
		return
	}

	if err := compiled.Validate(output); err != nil {
		apierr.Write(ctx, err.(*apierr.Error))
		return
	}

	body, err := json.Marshal(generateResponse{Output: output})
	if err != nil {
		apierr.Write(ctx, apierr.ProviderExecution("failed to serialize response: "+err.Error(), ""))
		return
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
