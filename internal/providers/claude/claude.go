// Package claude adapts the claude CLI: the JSON Schema is passed as a
// compact --json-schema argument and the prompt is piped over stdin; the
// CLI's JSON envelope on stdout carries the structured result under a
// "structured_output" field.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

const program = "claude"

// Provider runs prompts through the claude CLI.
type Provider struct {
	exec executor.Executor
}

// New returns a Provider that spawns the claude CLI via exec.
func New(exec executor.Executor) *Provider {
	return &Provider{exec: exec}
}

func (p *Provider) Name() string { return program }

func (p *Provider) Execute(ctx context.Context, prompt string, schema map[string]any, model string, timeout time.Duration) (json.RawMessage, error) {
	schemaCompact, err := json.Marshal(schema)
	if err != nil {
		return nil, apierr.InvalidSchema(fmt.Sprintf("schema is not serializable: %v", err))
	}

	var args []string
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "--output-format", "json", "--json-schema", string(schemaCompact), "-p")

	out, err := p.exec.Run(ctx, program, args, prompt, timeout)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		StructuredOutput json.RawMessage `json:"structured_output"`
	}
	if err := json.Unmarshal([]byte(out.Stdout), &envelope); err != nil {
		return nil, apierr.OutputParse(fmt.Sprintf("failed to parse output: %v", err), out.Stdout)
	}
	if envelope.StructuredOutput == nil {
		return nil, apierr.OutputParse("missing 'structured_output' field", out.Stdout)
	}
	return envelope.StructuredOutput, nil
}
