package claude

import (
	"context"
	"testing"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

func schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"answer": map[string]any{"type": "string"}}}
}

func TestExecute_ExtractsStructuredOutput(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{Stdout: `{"structured_output": {"answer": "42"}}`}}
	p := New(fake)

	out, err := p.Execute(context.Background(), "what is the answer?", schema(), "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"answer": "42"}` {
		t.Errorf("output = %s", out)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Program != "claude" {
		t.Errorf("program = %q", calls[0].Program)
	}
	if calls[0].StdinData != "what is the answer?" {
		t.Errorf("stdin = %q", calls[0].StdinData)
	}

	foundSchemaFlag := false
	for i, a := range calls[0].Args {
		if a == "--json-schema" && i+1 < len(calls[0].Args) {
			foundSchemaFlag = true
		}
	}
	if !foundSchemaFlag {
		t.Errorf("expected --json-schema flag in args, got %v", calls[0].Args)
	}
}

func TestExecute_PrependsModelFlag(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{Stdout: `{"structured_output": {}}`}}
	p := New(fake)

	if _, err := p.Execute(context.Background(), "hi", schema(), "opus-4", time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args := fake.Calls()[0].Args
	if args[0] != "--model" || args[1] != "opus-4" {
		t.Errorf("expected --model opus-4 first, got %v", args)
	}
}

func TestExecute_MissingStructuredOutputField(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{Stdout: `{"other": 1}`}}
	p := New(fake)

	_, err := p.Execute(context.Background(), "hi", schema(), "", time.Second)
	if err == nil {
		t.Fatal("expected error for missing structured_output field")
	}
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindOutputParse {
		t.Fatalf("expected OutputParse, got %v", err)
	}
}

func TestExecute_InvalidJSONStdout(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{Stdout: `not json`}}
	p := New(fake)

	_, err := p.Execute(context.Background(), "hi", schema(), "", time.Second)
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExecute_ExecutorError_Propagates(t *testing.T) {
	fake := &executor.Fake{Err: apierr.Timeout("claude", 30)}
	p := New(fake)

	_, err := p.Execute(context.Background(), "hi", schema(), "", time.Second)
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.KindTimeout {
		t.Fatalf("expected Timeout to propagate, got %v", err)
	}
}
