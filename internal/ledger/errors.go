package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrBridgeUnavailable means the ledger CLI is not installed or not callable.
	ErrBridgeUnavailable = errors.New("ledger bridge unavailable")
	// ErrMissingConfiguration means a required identifier or credential is not set.
	ErrMissingConfiguration = errors.New("ledger configuration missing")
	// ErrInvocationFailed means the ledger rejected the call or it timed out.
	ErrInvocationFailed = errors.New("ledger invocation failed")
)

// InvocationError carries the diagnostic text of a failed ledger call.
type InvocationError struct {
	Operation string
	Detail    string
	TimedOut  bool
}

func (e *InvocationError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("ledger %s timed out: %s", e.Operation, e.Detail)
	}
	return fmt.Sprintf("ledger %s failed: %s", e.Operation, e.Detail)
}

func (e *InvocationError) Unwrap() error { return ErrInvocationFailed }

// UnavailableError describes why the bridge version check failed and how to fix it.
type UnavailableError struct {
	Binary string
	Detail string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("the '%s' CLI was not found or is not callable. Install the Stellar/Soroban CLI "+
		"(for example 'cargo install --locked stellar-cli') and make sure it is on PATH, or set LEDGER_BIN. "+
		"Check output: %s", e.Binary, e.Detail)
}

func (e *UnavailableError) Unwrap() error { return ErrBridgeUnavailable }

func missingConfig(key string) error {
	return fmt.Errorf("%w: %s is not set in the environment", ErrMissingConfiguration, key)
}
