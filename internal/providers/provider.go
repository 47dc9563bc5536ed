// Package providers adapts each supported CLI assistant to a uniform
// Provider interface, hiding the wildly different ways claude, codex, and
// gemini accept a JSON Schema and emit structured output.
package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
	"github.com/nulpointcorp/llm-mux-gateway/internal/providers/claude"
	"github.com/nulpointcorp/llm-mux-gateway/internal/providers/codex"
	"github.com/nulpointcorp/llm-mux-gateway/internal/providers/gemini"
)

// Provider runs one prompt through a CLI assistant and returns its
// structured output as raw JSON, already extracted from whatever envelope
// or formatting the underlying CLI wraps it in.
type Provider interface {
	Name() string
	Execute(ctx context.Context, prompt string, schema map[string]any, model string, timeout time.Duration) (json.RawMessage, error)
}

// New builds the fixed set of supported providers, all sharing exec. The
// set of names is closed: the gateway does not discover providers at
// runtime, it wires exactly these three.
func New(exec executor.Executor) map[string]Provider {
	return map[string]Provider{
		"claude": claude.New(exec),
		"codex":  codex.New(exec),
		"gemini": gemini.New(exec),
	}
}
