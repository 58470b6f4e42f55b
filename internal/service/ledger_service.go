package service

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"

	"provenance-service/internal/models"
	"provenance-service/internal/util"

	"go.uber.org/zap"
)

// LedgerReader covers the ledger reads and token/role administration.
type LedgerReader interface {
	GetProduct(ctx context.Context, productID string) (any, error)
	GetProductHistory(ctx context.Context, productID string) ([]any, error)
	GetCurrentStatus(ctx context.Context, productID string) (models.Status, error)
	Balance(ctx context.Context, account string) (*big.Int, error)
	Mint(ctx context.Context, to string, amount *big.Int) (string, error)
	Transfer(ctx context.Context, to string, amount *big.Int) (string, error)
	GrantRole(ctx context.Context, addr string, role uint32) (string, error)
	RevokeRole(ctx context.Context, addr string) (string, error)
	GetRole(ctx context.Context, addr string) (uint32, error)
}

// LedgerService serves reads straight from the ledger.
type LedgerService struct {
	ledger LedgerReader
	cache  StatusCache
	logger *zap.Logger
}

// NewLedgerService creates a ledger-backed read service.
func NewLedgerService(ledger LedgerReader) *LedgerService {
	return &LedgerService{
		ledger: ledger,
		logger: util.GetLogger(),
	}
}

// SetStatusCache lets GetCurrentStatus answer from the cache.
func (s *LedgerService) SetStatusCache(c StatusCache) {
	s.cache = c
}

// StatusView is the current status of a product.
type StatusView struct {
	ProductID  string        `json:"productId"`
	Status     models.Status `json:"status"`
	StatusName string        `json:"statusName"`
	Location   string        `json:"location,omitempty"`
	Source     string        `json:"source"`
}

// TokenRequest is a mint or transfer request.
type TokenRequest struct {
	Wallet string      `json:"wallet"`
	To     string      `json:"toWallet"`
	Amount json.Number `json:"amount"`
}

// RoleRequest is a role grant or revoke request.
type RoleRequest struct {
	Addr string  `json:"addr"`
	Role *uint32 `json:"role"`
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "required")
	}
	return nil
}

func parseAmount(n json.Number) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(n.String()), 10)
	if !ok {
		return nil, invalid("amount", "must be an integer")
	}
	if amount.Sign() <= 0 {
		return nil, invalid("amount", "must be positive")
	}
	return amount, nil
}

// GetProduct reads the product record held by the ledger.
func (s *LedgerService) GetProduct(ctx context.Context, productID string) (any, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetProduct")
	defer span.End()

	if err := requireID("productId", productID); err != nil {
		return nil, err
	}
	return s.ledger.GetProduct(ctx, productID)
}

// GetProductHistory reads the steps the ledger holds for a product.
func (s *LedgerService) GetProductHistory(ctx context.Context, productID string) ([]any, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetProductHistory")
	defer span.End()

	if err := requireID("productId", productID); err != nil {
		return nil, err
	}
	return s.ledger.GetProductHistory(ctx, productID)
}

// GetCurrentStatus answers from the status cache when possible and from the
// ledger otherwise.
func (s *LedgerService) GetCurrentStatus(ctx context.Context, productID string) (*StatusView, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetCurrentStatus")
	defer span.End()

	if err := requireID("productId", productID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		status, location, ok, err := s.cache.GetStatus(ctx, productID)
		switch {
		case err != nil:
			util.StatusCacheLookupsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Status cache lookup failed, reading ledger",
				zap.String("product_id", productID),
				zap.Error(err))
		case ok:
			util.StatusCacheLookupsTotal.WithLabelValues("hit").Inc()
			return &StatusView{ProductID: productID, Status: status, StatusName: status.String(), Location: location, Source: "cache"}, nil
		default:
			util.StatusCacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	status, err := s.ledger.GetCurrentStatus(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &StatusView{ProductID: productID, Status: status, StatusName: status.String(), Source: "ledger"}, nil
}

// Balance returns the token balance of a wallet.
func (s *LedgerService) Balance(ctx context.Context, wallet string) (*big.Int, error) {
	if err := requireID("wallet", wallet); err != nil {
		return nil, err
	}
	return s.ledger.Balance(ctx, wallet)
}

// Mint mints reward tokens to req.Wallet.
func (s *LedgerService) Mint(ctx context.Context, req *TokenRequest) (string, error) {
	if err := requireID("wallet", req.Wallet); err != nil {
		return "", err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return "", err
	}
	tx, err := s.ledger.Mint(ctx, req.Wallet, amount)
	if err != nil {
		return "", err
	}
	s.logger.Info("Tokens minted", zap.String("wallet", req.Wallet), zap.String("amount", amount.String()))
	return tx, nil
}

// Transfer sends tokens from the admin account to req.To.
func (s *LedgerService) Transfer(ctx context.Context, req *TokenRequest) (string, error) {
	if err := requireID("toWallet", req.To); err != nil {
		return "", err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return "", err
	}
	tx, err := s.ledger.Transfer(ctx, req.To, amount)
	if err != nil {
		return "", err
	}
	s.logger.Info("Tokens transferred", zap.String("to", req.To), zap.String("amount", amount.String()))
	return tx, nil
}

// GrantRole assigns a contract role.
func (s *LedgerService) GrantRole(ctx context.Context, req *RoleRequest) (string, error) {
	if err := requireID("addr", req.Addr); err != nil {
		return "", err
	}
	if req.Role == nil {
		return "", invalid("role", "required")
	}
	return s.ledger.GrantRole(ctx, req.Addr, *req.Role)
}

// RevokeRole removes the contract role of an address.
func (s *LedgerService) RevokeRole(ctx context.Context, req *RoleRequest) (string, error) {
	if err := requireID("addr", req.Addr); err != nil {
		return "", err
	}
	return s.ledger.RevokeRole(ctx, req.Addr)
}

// GetRole returns the contract role of an address.
func (s *LedgerService) GetRole(ctx context.Context, addr string) (uint32, error) {
	if err := requireID("addr", addr); err != nil {
		return 0, err
	}
	return s.ledger.GetRole(ctx, addr)
}
