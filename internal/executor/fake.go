package executor

import (
	"context"
	"sync"
	"time"
)

// Call records one invocation observed by a Fake.
type Call struct {
	Program   string
	Args      []string
	StdinData string
	Timeout   time.Duration
}

// Fake is a test double for Executor. By default it returns Result
// unconditionally; set Err to simulate a failure instead.
type Fake struct {
	Result Result
	Err    error

	// Handler, when set, overrides Result/Err entirely and lets a test
	// compute a response from the call (e.g. to inspect the schema file
	// Adapter B writes to disk before the subprocess "runs").
	Handler func(ctx context.Context, program string, args []string, stdinData string, timeout time.Duration) (Result, error)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Run(ctx context.Context, program string, args []string, stdinData string, timeout time.Duration) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Program: program, Args: append([]string(nil), args...), StdinData: stdinData, Timeout: timeout})
	f.mu.Unlock()

	if f.Handler != nil {
		return f.Handler(ctx, program, args, stdinData, timeout)
	}
	return f.Result, f.Err
}

// Calls returns a snapshot of every invocation observed so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
