// Package codex adapts the codex CLI: the JSON Schema is written to a
// scratch file on disk and referenced via --output-schema, since codex has
// no flag for an inline schema. The CLI's stdout is the structured result
// itself, with no enclosing envelope.
package codex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

const program = "codex"

// Provider runs prompts through the codex CLI.
type Provider struct {
	exec executor.Executor
}

// New returns a Provider that spawns the codex CLI via exec.
func New(exec executor.Executor) *Provider {
	return &Provider{exec: exec}
}

func (p *Provider) Name() string { return program }

func (p *Provider) Execute(ctx context.Context, prompt string, schema map[string]any, model string, timeout time.Duration) (json.RawMessage, error) {
	schemaData, err := json.Marshal(schema)
	if err != nil {
		return nil, apierr.InvalidSchema(fmt.Sprintf("schema is not serializable: %v", err))
	}

	schemaFile, err := os.CreateTemp("", "llm-mux-schema-*.json")
	if err != nil {
		return nil, apierr.ProviderExecution(fmt.Sprintf("failed to create temp file: %v", err), "")
	}
	defer os.Remove(schemaFile.Name())

	if _, err := schemaFile.Write(schemaData); err != nil {
		schemaFile.Close()
		return nil, apierr.ProviderExecution(fmt.Sprintf("failed to write schema: %v", err), "")
	}
	if err := schemaFile.Close(); err != nil {
		return nil, apierr.ProviderExecution(fmt.Sprintf("failed to write schema: %v", err), "")
	}

	args := []string{"exec"}
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "--output-schema", schemaFile.Name(), "--skip-git-repo-check")

	out, err := p.exec.Run(ctx, program, args, prompt, timeout)
	if err != nil {
		return nil, err
	}

	var v json.RawMessage
	if err := json.Unmarshal([]byte(out.Stdout), &v); err != nil {
		return nil, apierr.OutputParse(fmt.Sprintf("failed to parse output: %v", err), out.Stdout)
	}
	return v, nil
}
