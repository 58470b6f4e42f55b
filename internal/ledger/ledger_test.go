package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"provenance-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedRunner struct {
	mu      sync.Mutex
	checks  int
	calls   [][]string
	version func() (Output, error)
	respond func(op string, args []string) (Output, error)
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(args) == 1 && args[0] == "--version" {
		r.checks++
		if r.version != nil {
			return r.version()
		}
		return Output{Stdout: "stellar 22.0.1"}, nil
	}

	r.calls = append(r.calls, append([]string{name}, args...))
	if r.respond != nil {
		return r.respond(opOf(args), args)
	}
	return Output{Stdout: `"ok"`}, nil
}

func opOf(args []string) string {
	for i, a := range args {
		if a == "--" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func flagValue(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func TestTimestampRoundTrip(t *testing.T) {
	for _, ms := range []uint64{0, 1, 1714564800000, 1<<32 - 1, 1 << 32, ^uint64(0)} {
		high, low := EncodeTimestamp(ms)
		assert.Equal(t, ms, DecodeTimestamp(high, low), "ms=%d", ms)
	}

	high, low := EncodeTimestamp(1714564800000)
	assert.Equal(t, uint32(399), high)
	assert.Equal(t, uint32(1714564800000&0xFFFFFFFF), low)

	at := time.UnixMilli(1714564800123)
	high, low = TimestampHalves(at)
	assert.Equal(t, uint64(1714564800123), DecodeTimestamp(high, low))
}

func TestGateRemembersSuccessOnly(t *testing.T) {
	fail := true
	runner := &scriptedRunner{version: func() (Output, error) {
		if fail {
			return Output{}, errors.New("exec: \"stellar\": executable file not found in $PATH")
		}
		return Output{Stdout: "stellar 22.0.1"}, nil
	}}
	gate := NewGate("stellar", runner, time.Second)

	err := gate.Ensure(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
	assert.Contains(t, err.Error(), "LEDGER_BIN")
	assert.False(t, gate.Available())

	fail = false
	require.NoError(t, gate.Ensure(context.Background()))
	require.NoError(t, gate.Ensure(context.Background()))
	assert.True(t, gate.Available())
	assert.Equal(t, 2, runner.checks)
}

func TestGateNonZeroExitIsUnavailable(t *testing.T) {
	runner := &scriptedRunner{version: func() (Output, error) {
		return Output{Stderr: "broken install", ExitCode: 127}, nil
	}}
	err := NewGate("stellar", runner, time.Second).Ensure(context.Background())

	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "broken install", unavailable.Detail)
}

func TestGateVersionCheckIsBounded(t *testing.T) {
	inv := NewInvoker(Config{ContractID: "CCONTRACT", Timeout: 50 * time.Millisecond}, hangingVersionRunner{})

	start := time.Now()
	_, err := inv.Invoke(context.Background(), Invocation{Operation: OpBalance})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
	assert.Contains(t, err.Error(), "no answer to --version within 50ms")
	assert.Less(t, elapsed, time.Second)
	assert.False(t, inv.Gate().Available())
}

// hangingVersionRunner never answers the version query until its context ends.
type hangingVersionRunner struct{}

func (hangingVersionRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	select {
	case <-ctx.Done():
		return Output{}, ctx.Err()
	case <-time.After(2 * time.Second):
		return Output{Stdout: "stellar 22.0.1"}, nil
	}
}

func TestGateChecksOnceUnderConcurrency(t *testing.T) {
	runner := &scriptedRunner{}
	gate := NewGate("stellar", runner, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Ensure(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, runner.checks)
}

func TestInvokeBuildsArgv(t *testing.T) {
	runner := &scriptedRunner{}
	inv := NewInvoker(Config{
		ContractID:        "CCONTRACT",
		RPCURL:            "https://rpc.example",
		NetworkPassphrase: "Test SDF Network ; September 2015",
	}, runner)

	_, err := inv.Invoke(context.Background(), Invocation{
		Operation: OpAddStep,
		Source:    "GPARTY",
		Args: []Arg{
			{Name: "product_id", Value: "PROD-001"},
			{Name: "step_type", Value: uint32(1)},
			{Name: "tracking_number", Value: "", Optional: true},
			{Name: "metadata", Value: map[string]string{"temp": "4C"}, Optional: true},
		},
	})
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)

	assert.Equal(t, []string{
		"stellar", "contract", "invoke",
		"--id", "CCONTRACT",
		"--source-account", "GPARTY",
		"--network-passphrase", "Test SDF Network ; September 2015",
		"--rpc-url", "https://rpc.example",
		"--", "add_step",
		"--product_id", "PROD-001",
		"--step_type", "1",
		"--metadata", `{"temp":"4C"}`,
	}, runner.calls[0])
}

func TestInvokeDefaultsToAdminSource(t *testing.T) {
	runner := &scriptedRunner{}
	inv := NewInvoker(Config{ContractID: "CCONTRACT"}, runner)

	_, err := inv.Invoke(context.Background(), Invocation{Operation: OpGetRole, Args: []Arg{{Name: "addr", Value: "GADDR"}}})
	require.NoError(t, err)

	source, ok := flagValue(runner.calls[0], "--source-account")
	require.True(t, ok)
	assert.Equal(t, "admin", source)
	_, ok = flagValue(runner.calls[0], "--rpc-url")
	assert.False(t, ok)
}

func TestInvokeClassifiesOutput(t *testing.T) {
	tests := []struct {
		name     string
		out      Output
		runErr   error
		wantErr  error
		contains string
	}{
		{name: "success", out: Output{Stdout: "\"abc123\"\n"}},
		{name: "non-zero exit", out: Output{Stderr: "HostError: Error(Contract, #3)", ExitCode: 1}, wantErr: ErrInvocationFailed, contains: "Contract, #3"},
		{name: "non-zero exit without stderr", out: Output{ExitCode: 2}, wantErr: ErrInvocationFailed, contains: "exit status 2"},
		{name: "error marker on stdout", out: Output{Stdout: "Error: simulation failed"}, wantErr: ErrInvocationFailed, contains: "simulation failed"},
		{name: "cross mark on stdout", out: Output{Stdout: "❌ transaction rejected"}, wantErr: ErrInvocationFailed, contains: "rejected"},
		{name: "runner failure", runErr: errors.New("pipe closed"), wantErr: ErrInvocationFailed, contains: "pipe closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{respond: func(op string, args []string) (Output, error) {
				return tt.out, tt.runErr
			}}
			inv := NewInvoker(Config{ContractID: "CCONTRACT"}, runner)

			res, err := inv.Invoke(context.Background(), Invocation{Operation: OpMint})
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "abc123", res.Scalar())
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestInvokeMissingContract(t *testing.T) {
	runner := &scriptedRunner{}
	inv := NewInvoker(Config{}, runner)

	_, err := inv.Invoke(context.Background(), Invocation{Operation: OpBalance})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingConfiguration)
	assert.Contains(t, err.Error(), "CONTRACT_ID")
	assert.Empty(t, runner.calls)
}

func TestInvokeUnavailableBridgeSkipsCall(t *testing.T) {
	runner := &scriptedRunner{version: func() (Output, error) {
		return Output{}, errors.New("not found")
	}}
	inv := NewInvoker(Config{ContractID: "CCONTRACT"}, runner)

	_, err := inv.Invoke(context.Background(), Invocation{Operation: OpBalance})
	assert.ErrorIs(t, err, ErrBridgeUnavailable)
	assert.Empty(t, runner.calls)
}

func TestInvokeTimeout(t *testing.T) {
	runner := &blockingRunner{}
	inv := NewInvoker(Config{ContractID: "CCONTRACT", Timeout: 10 * time.Millisecond}, runner)

	_, err := inv.Invoke(context.Background(), Invocation{Operation: OpCreateProduct})
	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.True(t, invErr.TimedOut)
	assert.ErrorIs(t, err, ErrInvocationFailed)
}

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	if len(args) == 1 && args[0] == "--version" {
		return Output{Stdout: "stellar 22.0.1"}, nil
	}
	<-ctx.Done()
	return Output{}, ctx.Err()
}

func TestSequence(t *testing.T) {
	ok := func(hash string) func(context.Context) (Result, error) {
		return func(context.Context) (Result, error) { return Result{Raw: `"` + hash + `"`}, nil }
	}
	fail := func(msg string) func(context.Context) (Result, error) {
		return func(context.Context) (Result, error) { return Result{}, errors.New(msg) }
	}
	logger := zap.NewNop()

	t.Run("first succeeds", func(t *testing.T) {
		called := false
		receipt, err := Sequence(context.Background(), logger,
			Attempt{Entrypoint: "a", Call: ok("h1")},
			Attempt{Entrypoint: "b", Call: func(context.Context) (Result, error) { called = true; return Result{}, nil }},
		)
		require.NoError(t, err)
		assert.Equal(t, Receipt{TxHash: "h1", Entrypoint: "a"}, receipt)
		assert.False(t, called)
	})

	t.Run("falls back", func(t *testing.T) {
		receipt, err := Sequence(context.Background(), logger,
			Attempt{Entrypoint: "a", Call: fail("no such function")},
			Attempt{Entrypoint: "b", Call: ok("h2")},
		)
		require.NoError(t, err)
		assert.Equal(t, "h2", receipt.TxHash)
		assert.Equal(t, "b", receipt.Entrypoint)
		require.Len(t, receipt.Suppressed, 1)
		assert.EqualError(t, receipt.Suppressed[0], "no such function")
	})

	t.Run("all fail returns last error", func(t *testing.T) {
		_, err := Sequence(context.Background(), logger,
			Attempt{Entrypoint: "a", Call: fail("first")},
			Attempt{Entrypoint: "b", Call: fail("second")},
		)
		assert.EqualError(t, err, "second")
	})

	t.Run("no attempts", func(t *testing.T) {
		_, err := Sequence(context.Background(), logger)
		assert.Error(t, err)
	})
}

func TestResultParsing(t *testing.T) {
	n, err := Result{Raw: `"170141183460469231731687303715884105727"`}.Int()
	require.NoError(t, err)
	assert.Equal(t, "170141183460469231731687303715884105727", n.String())

	_, err = Result{Raw: "abc"}.Int()
	assert.Error(t, err)

	role, err := Result{Raw: "3"}.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), role)

	assert.Equal(t, map[string]any{"id": "P1"}, Result{Raw: `{"id":"P1"}`}.Payload())
	assert.Equal(t, map[string]any{"raw": "plain text"}, Result{Raw: "plain text"}.Payload())
	assert.Equal(t, []any{float64(1), float64(2)}, Result{Raw: "[1,2]"}.List())
	assert.Len(t, Result{Raw: `{"id":"P1"}`}.List(), 1)
}

func TestClientCreateProductFallsBack(t *testing.T) {
	runner := &scriptedRunner{respond: func(op string, args []string) (Output, error) {
		if op == OpCreateProductWithTS {
			return Output{Stderr: "error: function create_product_with_ts not found", ExitCode: 1}, nil
		}
		return Output{Stdout: `"tx-legacy"`}, nil
	}}
	client := NewClient(NewInvoker(Config{ContractID: "CCONTRACT"}, runner))

	at := time.UnixMilli(1714564800000)
	receipt, err := client.CreateProduct(context.Background(), ProductArgs{ProductID: "PROD-001", SerialNumber: "SN-1", Manufacturer: "M1", Location: "X"}, at)
	require.NoError(t, err)
	assert.Equal(t, "tx-legacy", receipt.TxHash)
	assert.Equal(t, OpCreateProduct, receipt.Entrypoint)
	require.Len(t, receipt.Suppressed, 1)

	require.Len(t, runner.calls, 2)
	high, ok := flagValue(runner.calls[0], "--timestamp_high")
	require.True(t, ok)
	assert.Equal(t, "399", high)
	_, ok = flagValue(runner.calls[1], "--timestamp_high")
	assert.False(t, ok)
}

func TestClientAddStepArguments(t *testing.T) {
	runner := &scriptedRunner{}
	client := NewClient(NewInvoker(Config{ContractID: "CCONTRACT"}, runner))

	_, err := client.AddStep(context.Background(), StepArgs{
		ProductID:        "PROD-001",
		StepType:         models.StepProduction,
		Location:         "Factory",
		ResponsibleParty: "GPARTY",
		TrackingNumber:   "TRK-9",
	}, time.Now())
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)

	call := runner.calls[0]
	assert.Equal(t, OpAddStepWithTS, opOf(call[1:]))
	v, _ := flagValue(call, "--step_type")
	assert.Equal(t, "0", v)
	v, _ = flagValue(call, "--tracking_number")
	assert.Equal(t, "TRK-9", v)
	_, ok := flagValue(call, "--metadata")
	assert.False(t, ok)
}

func TestClientReads(t *testing.T) {
	runner := &scriptedRunner{respond: func(op string, args []string) (Output, error) {
		switch op {
		case OpGetCurrentStatus:
			return Output{Stdout: "2"}, nil
		case OpBalance:
			return Output{Stdout: `"1000"`}, nil
		case OpGetProductHistory:
			return Output{Stdout: `[{"step_type":0},{"step_type":1}]`}, nil
		}
		return Output{Stdout: `"ok"`}, nil
	}}
	client := NewClient(NewInvoker(Config{ContractID: "CCONTRACT"}, runner))
	ctx := context.Background()

	status, err := client.GetCurrentStatus(ctx, "PROD-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInWarehouse, status)

	balance, err := client.Balance(ctx, "GWALLET")
	require.NoError(t, err)
	assert.Equal(t, "1000", balance.String())

	history, err := client.GetProductHistory(ctx, "PROD-001")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestClientTransferNeedsAdminKey(t *testing.T) {
	runner := &scriptedRunner{}
	client := NewClient(NewInvoker(Config{ContractID: "CCONTRACT"}, runner))

	_, err := client.Transfer(context.Background(), "GTO", nil)
	assert.ErrorIs(t, err, ErrMissingConfiguration)
	assert.Contains(t, err.Error(), "ADMIN_PUBLIC_KEY")
	assert.Empty(t, runner.calls)
}
