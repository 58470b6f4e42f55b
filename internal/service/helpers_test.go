package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"provenance-service/internal/ledger"
	"provenance-service/internal/mirror"
	"provenance-service/internal/models"

	"github.com/stretchr/testify/require"
)

// fakeBridge stands in for the stellar CLI.
type fakeBridge struct {
	mu          sync.Mutex
	calls       [][]string
	unavailable bool
	hang        bool
	fail        map[string]string
	stdout      map[string]string
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{fail: map[string]string{}, stdout: map[string]string{}}
}

func (b *fakeBridge) Run(ctx context.Context, name string, args ...string) (ledger.Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(args) == 1 && args[0] == "--version" {
		if b.unavailable {
			return ledger.Output{}, errors.New("executable file not found in $PATH")
		}
		return ledger.Output{Stdout: "stellar 22.0.1"}, nil
	}

	b.calls = append(b.calls, append([]string(nil), args...))
	op := operationOf(args)
	if b.hang {
		b.mu.Unlock()
		<-ctx.Done()
		b.mu.Lock()
		return ledger.Output{}, ctx.Err()
	}
	if msg, ok := b.fail[op]; ok {
		return ledger.Output{Stderr: msg, ExitCode: 1}, nil
	}
	if out, ok := b.stdout[op]; ok {
		return ledger.Output{Stdout: out}, nil
	}
	return ledger.Output{Stdout: `"tx-` + op + `"` + "\n"}, nil
}

func (b *fakeBridge) operations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	ops := make([]string, 0, len(b.calls))
	for _, c := range b.calls {
		ops = append(ops, operationOf(c))
	}
	return ops
}

func operationOf(args []string) string {
	for i, a := range args {
		if a == "--" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

type recordingMirror struct {
	mu       sync.Mutex
	products []models.Product
	steps    []models.Step
	err      error
}

func (m *recordingMirror) MirrorProduct(ctx context.Context, p models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.products = append(m.products, p)
	return nil
}

func (m *recordingMirror) MirrorStep(ctx context.Context, s models.Step, status models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.steps = append(m.steps, s)
	return nil
}

type cachedStatus struct {
	status   models.Status
	location string
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cachedStatus
	err     error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]cachedStatus{}}
}

func (c *memoryCache) SetStatus(ctx context.Context, productID string, status models.Status, location string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[productID] = cachedStatus{status: status, location: location}
	return nil
}

func (c *memoryCache) GetStatus(ctx context.Context, productID string) (models.Status, string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, "", false, c.err
	}
	e, ok := c.entries[productID]
	return e.status, e.location, ok, nil
}

func newTestService(t *testing.T, bridge *fakeBridge, cfg ledger.Config) (*ProvenanceService, *mirror.Store) {
	t.Helper()

	local, err := mirror.Open(t.TempDir())
	require.NoError(t, err)

	if cfg.ContractID == "" {
		cfg.ContractID = "CCONTRACT"
	}
	client := ledger.NewClient(ledger.NewInvoker(cfg, bridge))
	return NewProvenanceService(client, local), local
}

func intPtr(v int) *int { return &v }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
