package ledger

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Receipt records which entrypoint accepted a write.
type Receipt struct {
	TxHash     string
	Entrypoint string
	// Suppressed holds the failures of entrypoints tried before the one that succeeded.
	Suppressed []error
}

// Attempt is one entrypoint shape for a logical ledger write.
type Attempt struct {
	Entrypoint string
	Call       func(ctx context.Context) (Result, error)
}

// Sequence tries attempts in order and returns the first success. Earlier
// failures are logged and kept on the receipt; if every attempt fails only the
// last error is returned. Attempts share no idempotency key.
func Sequence(ctx context.Context, logger *zap.Logger, attempts ...Attempt) (Receipt, error) {
	if len(attempts) == 0 {
		return Receipt{}, errors.New("ledger: no entrypoints to try")
	}

	var suppressed []error
	for n, attempt := range attempts {
		res, err := attempt.Call(ctx)
		if err == nil {
			return Receipt{TxHash: res.Scalar(), Entrypoint: attempt.Entrypoint, Suppressed: suppressed}, nil
		}
		if n == len(attempts)-1 {
			return Receipt{}, err
		}

		logger.Warn("Ledger entrypoint failed, falling back",
			zap.String("entrypoint", attempt.Entrypoint),
			zap.String("fallback", attempts[n+1].Entrypoint),
			zap.Error(err))
		suppressed = append(suppressed, err)
	}
	return Receipt{}, errors.New("ledger: unreachable")
}
