package ledger

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Result is the trimmed stdout of a successful invocation.
type Result struct {
	Raw string
}

// Scalar returns the output with surrounding JSON string quotes removed.
func (r Result) Scalar() string {
	return strings.TrimSpace(strings.ReplaceAll(r.Raw, `"`, ""))
}

// Int parses the output as an integer of arbitrary size (i128 balances).
func (r Result) Int() (*big.Int, error) {
	n, ok := new(big.Int).SetString(r.Scalar(), 10)
	if !ok {
		return nil, fmt.Errorf("ledger returned non-integer output %q", r.Raw)
	}
	return n, nil
}

// Uint32 parses the output as a u32 contract value.
func (r Result) Uint32() (uint32, error) {
	n, err := strconv.ParseUint(r.Scalar(), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("ledger returned non-u32 output %q: %w", r.Raw, err)
	}
	return uint32(n), nil
}

// Payload decodes a JSON map or array; anything else is wrapped as {"raw": text}.
func (r Result) Payload() any {
	var v any
	if err := json.Unmarshal([]byte(r.Raw), &v); err != nil {
		return map[string]any{"raw": r.Raw}
	}
	return v
}

// List decodes a JSON array. A single value becomes a one-element list.
func (r Result) List() []any {
	v := r.Payload()
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}
