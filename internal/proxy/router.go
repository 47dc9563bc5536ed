package proxy

import (
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
)

// connTimeoutMargin is added on top of the longest configured provider
// timeout when deriving the server's ReadTimeout/WriteTimeout, so the
// connection deadline never races the subprocess deadline that bounds it.
const connTimeoutMargin = 30 * time.Second

// RouteHandler is a fasthttp handler function.
type RouteHandler = fasthttp.RequestHandler

// ManagementRoutes holds optional management API handlers registered
// alongside the proxy routes.
type ManagementRoutes struct {
	Metrics RouteHandler
}

// Handler builds the fully wrapped fasthttp handler for this gateway,
// without starting a listener. Tests exercise this directly.
func (g *Gateway) Handler(mgmt *ManagementRoutes) fasthttp.RequestHandler {
	r := router.New()

	r.GET("/health", g.HandleHealth)
	r.POST("/generate", g.HandleGenerate)

	if mgmt != nil && mgmt.Metrics != nil {
		r.GET("/metrics", mgmt.Metrics)
	}

	return applyMiddleware(r.Handler,
		recovery,
		requestID,
		timing,
	)
}

// StartWithRoutes starts the HTTP server on addr (e.g. ":3000") with the
// optional management routes attached. It blocks until the listener stops,
// either from a transport error or a call to Shutdown.
//
// ReadTimeout/WriteTimeout bound the whole request-to-response-write cycle
// in fasthttp, not just socket I/O, so they must cover the slowest provider
// call the handler can legitimately make: the longest timeout_secs
// configured across every provider and model, plus a margin for network
// overhead. A fixed constant here (as opposed to the per-request deadline
// the executor already enforces around the subprocess) would silently drop
// the response of any generate call that ran longer than the constant but
// still finished within its own configured timeout.
func (g *Gateway) StartWithRoutes(addr string, mgmt *ManagementRoutes) error {
	connTimeout := g.settings.MaxTimeout(executor.DefaultTimeout) + connTimeoutMargin

	srv := &fasthttp.Server{
		Handler:      g.Handler(mgmt),
		ReadTimeout:  connTimeout,
		WriteTimeout: connTimeout,
	}

	g.srvMu.Lock()
	g.srv = srv
	g.srvMu.Unlock()

	err := srv.ListenAndServe(addr)
	if err == fasthttp.ErrConnectionClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the listener started by StartWithRoutes,
// letting in-flight requests finish. It is a no-op if the server has not
// started yet.
func (g *Gateway) Shutdown() error {
	g.srvMu.Lock()
	srv := g.srv
	g.srvMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown()
}
