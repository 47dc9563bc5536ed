package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

func TestCLIExecutor_Echo(t *testing.T) {
	c := New()
	res, err := c.Run(context.Background(), "cat", nil, "hello world", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stdout != "hello world" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello world")
	}
}

func TestCLIExecutor_NonZeroExit(t *testing.T) {
	c := New()
	_, err := c.Run(context.Background(), "sh", []string{"-c", "echo boom >&2; exit 3"}, "", time.Second)
	if err == nil {
		t.Fatal("expected error on non-zero exit")
	}
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		t.Fatalf("expected *apierr.Error, got %T", err)
	}
	if apiErr.Kind != apierr.KindProviderExecution {
		t.Errorf("kind = %v, want ProviderExecution", apiErr.Kind)
	}
	if !strings.Contains(apiErr.Stderr, "boom") {
		t.Errorf("stderr = %q, want it to contain %q", apiErr.Stderr, "boom")
	}
}

func TestCLIExecutor_Timeout(t *testing.T) {
	c := New()
	_, err := c.Run(context.Background(), "sleep", []string{"5"}, "", 20*time.Millisecond)
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		t.Fatalf("expected *apierr.Error, got %T (%v)", err, err)
	}
	if apiErr.Kind != apierr.KindTimeout {
		t.Errorf("kind = %v, want Timeout", apiErr.Kind)
	}
}

func TestCLIExecutor_SpawnFailure(t *testing.T) {
	c := New()
	_, err := c.Run(context.Background(), "this-program-does-not-exist-xyz", nil, "", time.Second)
	if err == nil {
		t.Fatal("expected error for unknown program")
	}
	apiErr, ok := err.(*apierr.Error)
	if !ok {
		t.Fatalf("expected *apierr.Error, got %T", err)
	}
	if apiErr.Kind != apierr.KindProviderExecution {
		t.Errorf("kind = %v, want ProviderExecution", apiErr.Kind)
	}
	if apiErr.Stderr != "" {
		t.Errorf("stderr = %q, want empty on spawn failure", apiErr.Stderr)
	}
}

func TestFake_RecordsCalls(t *testing.T) {
	f := &Fake{Result: Result{Stdout: `{"ok":true}`}}
	_, err := f.Run(context.Background(), "claude", []string{"-p"}, "prompt", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := f.Calls()
	if len(calls) != 1 || calls[0].Program != "claude" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}
