package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"provenance-service/internal/models"
	"provenance-service/internal/util"

	"go.uber.org/zap"
)

// Contract entrypoints.
const (
	OpBalance             = "balance"
	OpMint                = "mint"
	OpTransfer            = "transfer"
	OpCreateProduct       = "create_product"
	OpCreateProductWithTS = "create_product_with_ts"
	OpAddStep             = "add_step"
	OpAddStepWithTS       = "add_step_with_ts"
	OpGetProduct          = "get_product"
	OpGetProductHistory   = "get_product_history"
	OpGetCurrentStatus    = "get_current_status"
	OpGrantRole           = "grant_role"
	OpRevokeRole          = "revoke_role"
	OpGetRole             = "get_role"
)

// ProductArgs are the business arguments of a product registration.
type ProductArgs struct {
	ProductID    string
	SerialNumber string
	Manufacturer string
	Location     string
}

// StepArgs are the business arguments of a supply chain step.
type StepArgs struct {
	ProductID        string
	StepType         models.StepType
	Location         string
	ResponsibleParty string
	TrackingNumber   string
	Metadata         map[string]string
}

// Client exposes the contract entrypoints as typed calls.
type Client struct {
	invoker *Invoker
	logger  *zap.Logger
}

// NewClient wraps an invoker.
func NewClient(invoker *Invoker) *Client {
	return &Client{
		invoker: invoker,
		logger:  util.GetLogger(),
	}
}

// Invoker returns the underlying invoker.
func (c *Client) Invoker() *Invoker {
	return c.invoker
}

// CreateProduct registers a product, preferring the timestamp-aware entrypoint.
func (c *Client) CreateProduct(ctx context.Context, args ProductArgs, at time.Time) (Receipt, error) {
	high, low := TimestampHalves(at)
	base := []Arg{
		{Name: "product_id", Value: args.ProductID},
		{Name: "serial_number", Value: args.SerialNumber},
		{Name: "manufacturer", Value: args.Manufacturer},
		{Name: "location", Value: args.Location},
	}
	withTS := append(append([]Arg{}, base...),
		Arg{Name: "timestamp_high", Value: high},
		Arg{Name: "timestamp_low", Value: low},
	)

	return c.write(ctx, OpCreateProduct,
		c.attempt(Invocation{Operation: OpCreateProductWithTS, Args: withTS}),
		c.attempt(Invocation{Operation: OpCreateProduct, Args: base}),
	)
}

// AddStep records a step signed by the responsible party, preferring the
// timestamp-aware entrypoint.
func (c *Client) AddStep(ctx context.Context, args StepArgs, at time.Time) (Receipt, error) {
	high, low := TimestampHalves(at)
	head := []Arg{
		{Name: "product_id", Value: args.ProductID},
		{Name: "step_type", Value: uint32(args.StepType)},
		{Name: "location", Value: args.Location},
		{Name: "responsible_party", Value: args.ResponsibleParty},
	}
	tail := []Arg{
		{Name: "tracking_number", Value: args.TrackingNumber, Optional: true},
		{Name: "metadata", Value: args.Metadata, Optional: true},
	}

	withTS := append(append([]Arg{}, head...),
		Arg{Name: "timestamp_high", Value: high},
		Arg{Name: "timestamp_low", Value: low},
	)
	withTS = append(withTS, tail...)
	legacy := append(append([]Arg{}, head...), tail...)

	return c.write(ctx, OpAddStep,
		c.attempt(Invocation{Operation: OpAddStepWithTS, Source: args.ResponsibleParty, Args: withTS}),
		c.attempt(Invocation{Operation: OpAddStep, Source: args.ResponsibleParty, Args: legacy}),
	)
}

func (c *Client) attempt(inv Invocation) Attempt {
	return Attempt{
		Entrypoint: inv.Operation,
		Call: func(ctx context.Context) (Result, error) {
			return c.invoker.Invoke(ctx, inv)
		},
	}
}

func (c *Client) write(ctx context.Context, operation string, attempts ...Attempt) (Receipt, error) {
	receipt, err := Sequence(ctx, c.logger, attempts...)
	if err != nil {
		return Receipt{}, err
	}
	if len(receipt.Suppressed) > 0 {
		util.LedgerFallbacksTotal.WithLabelValues(operation).Inc()
	}
	return receipt, nil
}

// GetProduct reads a product record from the contract.
func (c *Client) GetProduct(ctx context.Context, productID string) (any, error) {
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpGetProduct,
		Args:      []Arg{{Name: "product_id", Value: productID}},
	})
	if err != nil {
		return nil, err
	}
	return res.Payload(), nil
}

// GetProductHistory reads the step history of a product from the contract.
func (c *Client) GetProductHistory(ctx context.Context, productID string) ([]any, error) {
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpGetProductHistory,
		Args:      []Arg{{Name: "product_id", Value: productID}},
	})
	if err != nil {
		return nil, err
	}
	return res.List(), nil
}

// GetCurrentStatus reads the status the contract derives for a product.
func (c *Client) GetCurrentStatus(ctx context.Context, productID string) (models.Status, error) {
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpGetCurrentStatus,
		Args:      []Arg{{Name: "product_id", Value: productID}},
	})
	if err != nil {
		return 0, err
	}
	n, err := res.Uint32()
	if err != nil {
		return 0, err
	}
	return models.Status(n), nil
}

// Balance returns the token balance of an account.
func (c *Client) Balance(ctx context.Context, account string) (*big.Int, error) {
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpBalance,
		Args:      []Arg{{Name: "id", Value: account}},
	})
	if err != nil {
		return nil, err
	}
	return res.Int()
}

// Mint mints amount tokens to an account, signed by the admin.
func (c *Client) Mint(ctx context.Context, to string, amount *big.Int) (string, error) {
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpMint,
		Args: []Arg{
			{Name: "to", Value: to},
			{Name: "amount", Value: amount},
		},
	})
	if err != nil {
		return "", err
	}
	return res.Raw, nil
}

// Transfer moves tokens from the admin account.
func (c *Client) Transfer(ctx context.Context, to string, amount *big.Int) (string, error) {
	from := c.invoker.cfg.AdminPublicKey
	if from == "" {
		return "", missingConfig("ADMIN_PUBLIC_KEY")
	}
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpTransfer,
		Args: []Arg{
			{Name: "from", Value: from},
			{Name: "to", Value: to},
			{Name: "amount", Value: amount},
		},
	})
	if err != nil {
		return "", err
	}
	return res.Raw, nil
}

// GrantRole assigns a role to an address.
func (c *Client) GrantRole(ctx context.Context, addr string, role uint32) (string, error) {
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpGrantRole,
		Args: []Arg{
			{Name: "addr", Value: addr},
			{Name: "role", Value: role},
		},
	})
	if err != nil {
		return "", err
	}
	return res.Raw, nil
}

// RevokeRole removes the role of an address.
func (c *Client) RevokeRole(ctx context.Context, addr string) (string, error) {
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpRevokeRole,
		Args:      []Arg{{Name: "addr", Value: addr}},
	})
	if err != nil {
		return "", err
	}
	return res.Raw, nil
}

// GetRole returns the role code of an address.
func (c *Client) GetRole(ctx context.Context, addr string) (uint32, error) {
	res, err := c.invoker.Invoke(ctx, Invocation{
		Operation: OpGetRole,
		Args:      []Arg{{Name: "addr", Value: addr}},
	})
	if err != nil {
		return 0, err
	}
	role, err := res.Uint32()
	if err != nil {
		return 0, fmt.Errorf("get role for %s: %w", addr, err)
	}
	return role, nil
}
