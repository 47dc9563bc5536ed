// Package ratelimit enforces per-provider and per-model admission limits:
// a maximum number of concurrently in-flight requests, a requests-per-second
// rolling window, and a requests-per-minute rolling window. Callers register
// a (provider, model) key once at startup and call TryAcquire on every
// incoming request; an unregistered key is always admitted, since it means
// the operator configured no limit for that key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

// Limits describes the admission limits for one (provider, model) pair. A
// zero value in any field means that dimension is unlimited.
type Limits struct {
	RPS        int
	RPM        int
	Concurrent int
}

// Guard releases whatever slots TryAcquire reserved. Release is idempotent
// and safe to call from a defer even when TryAcquire failed, in which case
// it was returned nil and is a no-op.
type Guard struct {
	once sync.Once
	sem  *semaphore.Weighted
}

// Release returns the concurrency slot held by g, if any. Calling Release
// more than once, or on a nil Guard, is a safe no-op.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		if g.sem != nil {
			g.sem.Release(1)
		}
	})
}

// limiter is the full set of admission primitives for one key.
type limiter struct {
	rps  *slidingWindow
	rpm  *slidingWindow
	conc *semaphore.Weighted
}

// Registry holds one limiter per (provider, model) key, addressed by a
// single string so callers don't need to reason about two-level maps.
type Registry struct {
	limiters sync.Map // key -> *limiter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Key joins provider and model into the Registry's lookup key.
func Key(provider, model string) string {
	return provider + "/" + model
}

// Register installs limits for key. Calling Register again for the same key
// replaces its limiter; it is not safe to call concurrently with TryAcquire
// for the same key, so callers must finish registration before serving
// traffic.
func (r *Registry) Register(key string, l Limits) {
	lim := &limiter{}
	if l.RPS > 0 {
		lim.rps = newSlidingWindow(time.Second, l.RPS)
	}
	if l.RPM > 0 {
		lim.rpm = newSlidingWindow(time.Minute, l.RPM)
	}
	if l.Concurrent > 0 {
		lim.conc = semaphore.NewWeighted(int64(l.Concurrent))
	}
	r.limiters.Store(key, lim)
}

// TryAcquire admits one request against key's limits, returning a Guard to
// release whatever it reserved. An unregistered key always succeeds and
// returns an empty Guard that releases nothing.
//
// The three dimensions are checked concurrency first, then RPS, then RPM,
// because the concurrency slot is the cheapest to roll back: if RPS or RPM
// denies, only the concurrency slot acquired in this call is released. A
// timestamp already recorded in the RPS window when RPM denies is not
// un-recorded; it simply ages out of that window on its own schedule. This
// asymmetry is intentional — see the rate limiter notes in DESIGN.md.
func (r *Registry) TryAcquire(provider, model string, now time.Time) (*Guard, error) {
	v, ok := r.limiters.Load(Key(provider, model))
	if !ok {
		return &Guard{}, nil
	}
	lim := v.(*limiter)

	g := &Guard{}

	if lim.conc != nil {
		if !lim.conc.TryAcquire(1) {
			return nil, apierr.RateLimited(provider, model)
		}
		g.sem = lim.conc
	}

	if lim.rps != nil && !lim.rps.tryAcquire(now) {
		g.Release()
		return nil, apierr.RateLimited(provider, model)
	}

	if lim.rpm != nil && !lim.rpm.tryAcquire(now) {
		g.Release()
		return nil, apierr.RateLimited(provider, model)
	}

	return g, nil
}
