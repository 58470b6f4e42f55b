package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"provenance-service/internal/util"
)

// DefaultTimeout bounds a single bridge invocation when none is configured.
const DefaultTimeout = 60 * time.Second

// errorMarker matches bridges that print a failure but still exit 0.
var errorMarker = regexp.MustCompile(`(?i)error|❌`)

// Config identifies the bridge binary and the contract it targets.
type Config struct {
	Binary            string
	ContractID        string
	SourceAccount     string
	AdminPublicKey    string
	RPCURL            string
	NetworkPassphrase string
	Timeout           time.Duration
}

// Arg is one named contract argument. Optional arguments with a zero value
// are not passed at all.
type Arg struct {
	Name     string
	Value    any
	Optional bool
}

// Invocation is a single contract entrypoint call.
type Invocation struct {
	Operation string
	// Source signs the transaction; the configured admin alias when empty.
	Source string
	Args   []Arg
}

// Invoker runs contract invocations through the command bridge.
type Invoker struct {
	cfg    Config
	runner Runner
	gate   *Gate
}

// NewInvoker creates an invoker. The gate checks the same binary and runner.
func NewInvoker(cfg Config, runner Runner) *Invoker {
	if cfg.Binary == "" {
		cfg.Binary = "stellar"
	}
	if cfg.SourceAccount == "" {
		cfg.SourceAccount = "admin"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Invoker{
		cfg:    cfg,
		runner: runner,
		gate:   NewGate(cfg.Binary, runner, cfg.Timeout),
	}
}

// Gate returns the availability gate guarding this invoker.
func (i *Invoker) Gate() *Gate {
	return i.gate
}

// Invoke calls the contract and classifies the bridge output.
func (i *Invoker) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	ctx, span := util.StartSpan(ctx, "ledger."+inv.Operation)
	defer span.End()

	start := time.Now()
	res, err := i.invoke(ctx, inv)
	util.LedgerInvocationDuration.WithLabelValues(inv.Operation).Observe(time.Since(start).Seconds())
	util.LedgerInvocationsTotal.WithLabelValues(inv.Operation, outcomeLabel(err)).Inc()
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (i *Invoker) invoke(ctx context.Context, inv Invocation) (Result, error) {
	if err := i.gate.Ensure(ctx); err != nil {
		return Result{}, err
	}
	if i.cfg.ContractID == "" {
		return Result{}, missingConfig("CONTRACT_ID")
	}

	argv, err := i.argv(inv)
	if err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	out, err := i.runner.Run(runCtx, i.cfg.Binary, argv...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, &InvocationError{Operation: inv.Operation, Detail: fmt.Sprintf("no response within %s", i.cfg.Timeout), TimedOut: true}
		}
		return Result{}, &InvocationError{Operation: inv.Operation, Detail: err.Error()}
	}

	if out.ExitCode != 0 {
		detail := strings.TrimSpace(out.Stderr)
		if detail == "" {
			detail = fmt.Sprintf("exit status %d", out.ExitCode)
		}
		return Result{}, &InvocationError{Operation: inv.Operation, Detail: detail}
	}
	if errorMarker.MatchString(out.Stdout) {
		return Result{}, &InvocationError{Operation: inv.Operation, Detail: strings.TrimSpace(out.Stdout)}
	}

	return Result{Raw: strings.TrimSpace(out.Stdout)}, nil
}

func (i *Invoker) argv(inv Invocation) ([]string, error) {
	source := inv.Source
	if source == "" {
		source = i.cfg.SourceAccount
	}

	argv := []string{"contract", "invoke", "--id", i.cfg.ContractID, "--source-account", source}
	if i.cfg.NetworkPassphrase != "" {
		argv = append(argv, "--network-passphrase", i.cfg.NetworkPassphrase)
	}
	if i.cfg.RPCURL != "" {
		argv = append(argv, "--rpc-url", i.cfg.RPCURL)
	}
	argv = append(argv, "--", inv.Operation)

	for _, arg := range inv.Args {
		value, ok, err := formatValue(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("encode argument %s: %w", arg.Name, err)
		}
		if !ok || (arg.Optional && value == "") {
			continue
		}
		argv = append(argv, "--"+arg.Name, value)
	}
	return argv, nil
}

// formatValue renders a contract argument. Structured values travel as JSON
// text; ok is false for values that should be omitted.
func formatValue(v any) (string, bool, error) {
	switch val := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, true, nil
	case *string:
		if val == nil {
			return "", false, nil
		}
		return *val, true, nil
	case int:
		return strconv.Itoa(val), true, nil
	case int64:
		return strconv.FormatInt(val, 10), true, nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true, nil
	case uint64:
		return strconv.FormatUint(val, 10), true, nil
	case *big.Int:
		if val == nil {
			return "", false, nil
		}
		return val.String(), true, nil
	case map[string]string:
		if len(val) == 0 {
			return "", false, nil
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrBridgeUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMissingConfiguration):
		return "misconfigured"
	default:
		return "failed"
	}
}
