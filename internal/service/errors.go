package service

import (
	"errors"
	"fmt"

	"provenance-service/internal/ledger"
	"provenance-service/internal/mirror"
	"provenance-service/internal/store"
)

var (
	// ErrValidation marks malformed caller input, rejected before any ledger call.
	ErrValidation = errors.New("validation failed")
	// ErrRemoteMirrorDisabled is returned by remote mirror reads when no database is configured.
	ErrRemoteMirrorDisabled = errors.New("remote mirror not configured")
)

// Failure stages reported to callers.
const (
	StageValidation    = "validation"
	StageAvailability  = "availability"
	StageConfiguration = "configuration"
	StageLedger        = "ledger"
	StageMirror        = "mirror"
	StageNotFound      = "not_found"
	StageConflict      = "conflict"
	StageInternal      = "internal"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// MirrorError means the ledger accepted a write but the local mirror could
// not record it. The ledger write stands; TxHash identifies it.
type MirrorError struct {
	TxHash string
	Err    error
}

func (e *MirrorError) Error() string {
	return fmt.Sprintf("ledger accepted transaction %s but the local mirror write failed: %v", e.TxHash, e.Err)
}

func (e *MirrorError) Unwrap() error { return e.Err }

// Stage classifies err into the stage that failed.
func Stage(err error) string {
	var mirrorErr *MirrorError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mirrorErr):
		return StageMirror
	case errors.Is(err, ErrValidation):
		return StageValidation
	case errors.Is(err, ledger.ErrBridgeUnavailable):
		return StageAvailability
	case errors.Is(err, ledger.ErrMissingConfiguration), errors.Is(err, ErrRemoteMirrorDisabled):
		return StageConfiguration
	case errors.Is(err, ledger.ErrInvocationFailed):
		return StageLedger
	case errors.Is(err, mirror.ErrAlreadyExists):
		return StageConflict
	case errors.Is(err, mirror.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return StageNotFound
	default:
		return StageInternal
	}
}
