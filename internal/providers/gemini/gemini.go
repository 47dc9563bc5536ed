// Package gemini adapts the gemini CLI, which has no schema flag at all:
// the schema is embedded in the prompt text and the CLI is asked to answer
// in a fenced code block, which is then extracted from its prose response.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

const program = "gemini"

// Provider runs prompts through the gemini CLI.
type Provider struct {
	exec executor.Executor
}

// New returns a Provider that spawns the gemini CLI via exec.
func New(exec executor.Executor) *Provider {
	return &Provider{exec: exec}
}

func (p *Provider) Name() string { return program }

func (p *Provider) Execute(ctx context.Context, prompt string, schema map[string]any, model string, timeout time.Duration) (json.RawMessage, error) {
	schemaPretty, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, apierr.InvalidSchema(fmt.Sprintf("schema is not serializable: %v", err))
	}

	combinedPrompt := fmt.Sprintf(
		"%s\n\n---\nRespond with JSON matching this schema:\n```json\n%s\n```",
		prompt, schemaPretty,
	)

	var args []string
	if model != "" {
		args = append(args, "--model", model)
	}

	out, err := p.exec.Run(ctx, program, args, combinedPrompt, timeout)
	if err != nil {
		return nil, err
	}

	jsonStr := extractJSON(out.Stdout)
	if jsonStr == "" {
		jsonStr = out.Stdout
	}

	var v json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return nil, apierr.OutputParse(fmt.Sprintf("failed to parse output: %v", err), out.Stdout)
	}
	return v, nil
}

// extractJSON pulls the contents of a fenced code block out of text,
// preferring a ```json-tagged block over a bare ``` block. It returns ""
// when neither is present.
func extractJSON(text string) string {
	if s, ok := extractFenced(text, "```json"); ok {
		return s
	}
	if s, ok := extractFenced(text, "```"); ok {
		return s
	}
	return ""
}

func extractFenced(text, openTag string) (string, bool) {
	start := strings.Index(text, openTag)
	if start == -1 {
		return "", false
	}
	rest := text[start+len(openTag):]

	// A bare ``` fence requires skipping to the end of its opening line;
	// a ```json fence has nothing else on that line to skip.
	if openTag == "```" {
		if nl := strings.Index(rest, "\n"); nl != -1 {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
