package ledger

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Output is what a bridge process produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes the bridge binary. A non-zero exit is reported through
// Output.ExitCode; the error is reserved for processes that could not run.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner runs the bridge as a child process without a shell.
type ExecRunner struct{}

// Run starts name with args and waits for it to exit or ctx to end.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, err
}
