// Package executor runs the provider CLIs as subprocesses: it spawns the
// named program, feeds it a prompt over stdin, and collects stdout/stderr
// under an optional wall-clock deadline. It is the one place in the gateway
// that touches os/exec, which keeps every adapter test free of real
// subprocesses via the Executor seam.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/pkg/apierr"
)

// DefaultTimeout is used when a caller passes timeout <= 0.
const DefaultTimeout = 120 * time.Second

// Result is the decoded output of a finished subprocess.
type Result struct {
	Stdout string
	Stderr string
}

// Executor runs a program to completion and returns its captured output.
// Implementations must be safe for concurrent use.
type Executor interface {
	Run(ctx context.Context, program string, args []string, stdinData string, timeout time.Duration) (Result, error)
}

// CLIExecutor is the production Executor: it shells out via os/exec.
type CLIExecutor struct{}

// New returns a ready-to-use CLIExecutor.
func New() *CLIExecutor { return &CLIExecutor{} }

// Run spawns program with args, writes stdinData to its stdin and closes it,
// and waits for exit bounded by timeout (DefaultTimeout when timeout <= 0).
// On deadline the child is killed and a Timeout error is returned; on a
// non-zero exit a ProviderExecution error carries the captured stderr.
func (c *CLIExecutor) Run(ctx context.Context, program string, args []string, stdinData string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, program, args...)
	cmd.Stdin = strings.NewReader(stdinData)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	outStr := toValidUTF8(stdout.Bytes())
	errStr := toValidUTF8(stderr.Bytes())

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{}, apierr.Timeout(program, uint64(timeout.Seconds()))
	}

	if err != nil {
		var exitErr *exec.ExitError
		if asExitError(err, &exitErr) {
			return Result{}, apierr.ProviderExecution(
				fmt.Sprintf("%s exited with status: %s", program, exitErr.ProcessState),
				errStr,
			)
		}
		return Result{}, apierr.ProviderExecution(fmt.Sprintf("failed to run %s: %v", program, err), "")
	}

	return Result{Stdout: outStr, Stderr: errStr}, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}

// toValidUTF8 mirrors Rust's String::from_utf8_lossy: invalid byte sequences
// are replaced rather than rejected, since provider CLIs are never trusted
// to emit clean UTF-8.
func toValidUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
