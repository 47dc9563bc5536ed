package gemini

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/internal/executor"
)

func schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"answer": map[string]any{"type": "string"}}}
}

func TestExecute_EmbedsSchemaInPrompt(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{Stdout: "```json\n{\"answer\": \"42\"}\n```"}}
	p := New(fake)

	out, err := p.Execute(context.Background(), "what is the answer?", schema(), "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"answer": "42"}` {
		t.Errorf("output = %s", out)
	}

	stdin := fake.Calls()[0].StdinData
	if !strings.Contains(stdin, "what is the answer?") || !strings.Contains(stdin, `"type": "object"`) {
		t.Errorf("expected combined prompt to contain both prompt and schema, got %q", stdin)
	}
}

func TestExecute_PrefersJSONFenceOverBareFence(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{
		Stdout: "```\nnot the answer\n```\nsome prose\n```json\n{\"answer\": \"right\"}\n```",
	}}
	p := New(fake)

	out, err := p.Execute(context.Background(), "hi", schema(), "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"answer": "right"}` {
		t.Errorf("output = %s, want the json-tagged fence contents", out)
	}
}

func TestExecute_FallsBackToBareFence(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{Stdout: "```\n{\"answer\": \"bare\"}\n```"}}
	p := New(fake)

	out, err := p.Execute(context.Background(), "hi", schema(), "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"answer": "bare"}` {
		t.Errorf("output = %s", out)
	}
}

func TestExecute_FallsBackToRawStdoutWhenNoFence(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{Stdout: `{"answer": "raw"}`}}
	p := New(fake)

	out, err := p.Execute(context.Background(), "hi", schema(), "", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"answer": "raw"}` {
		t.Errorf("output = %s", out)
	}
}

func TestExecute_InvalidJSONInsideFence(t *testing.T) {
	fake := &executor.Fake{Result: executor.Result{Stdout: "```json\nnope\n```"}}
	p := New(fake)

	_, err := p.Execute(context.Background(), "hi", schema(), "", time.Second)
	if err == nil {
		t.Fatal("expected parse error")
	}
}
