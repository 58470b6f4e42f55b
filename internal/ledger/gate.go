package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Gate checks once per process that the bridge binary answers a version
// query. A successful check is remembered for the process lifetime; a failed
// one is not, so installing the CLI while the service runs is enough.
type Gate struct {
	binary  string
	runner  Runner
	timeout time.Duration

	mu sync.Mutex
	ok atomic.Bool
}

// NewGate returns a gate checking binary through runner. A check that does not
// answer within timeout counts as unavailable.
func NewGate(binary string, runner Runner, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gate{binary: binary, runner: runner, timeout: timeout}
}

// Ensure returns nil once the bridge has answered a version check.
func (g *Gate) Ensure(ctx context.Context) error {
	if g.ok.Load() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ok.Load() {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.runner.Run(checkCtx, g.binary, "--version")
	if errors.Is(err, context.DeadlineExceeded) || (err == nil && checkCtx.Err() != nil) {
		return &UnavailableError{Binary: g.binary, Detail: fmt.Sprintf("no answer to --version within %s", g.timeout)}
	}
	if err != nil {
		return &UnavailableError{Binary: g.binary, Detail: err.Error()}
	}
	if out.ExitCode != 0 {
		detail := strings.TrimSpace(out.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(out.Stdout)
		}
		return &UnavailableError{Binary: g.binary, Detail: detail}
	}

	g.ok.Store(true)
	return nil
}

// Available reports whether a check has already succeeded.
func (g *Gate) Available() bool {
	return g.ok.Load()
}
