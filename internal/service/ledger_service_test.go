package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"provenance-service/internal/ledger"
	"provenance-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedgerService(bridge *fakeBridge, cfg ledger.Config) *LedgerService {
	if cfg.ContractID == "" {
		cfg.ContractID = "CCONTRACT"
	}
	return NewLedgerService(ledger.NewClient(ledger.NewInvoker(cfg, bridge)))
}

func TestGetCurrentStatusFromLedger(t *testing.T) {
	bridge := newFakeBridge()
	bridge.stdout[ledger.OpGetCurrentStatus] = "3\n"
	svc := newTestLedgerService(bridge, ledger.Config{})

	view, err := svc.GetCurrentStatus(context.Background(), "PROD-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, view.Status)
	assert.Equal(t, "Delivered", view.StatusName)
	assert.Equal(t, "ledger", view.Source)
}

func TestGetCurrentStatusPrefersCache(t *testing.T) {
	bridge := newFakeBridge()
	svc := newTestLedgerService(bridge, ledger.Config{})
	cache := newMemoryCache()
	cache.entries["PROD-001"] = cachedStatus{status: models.StatusInTransit, location: "Y"}
	svc.SetStatusCache(cache)

	view, err := svc.GetCurrentStatus(context.Background(), "PROD-001")
	require.NoError(t, err)
	assert.Equal(t, "cache", view.Source)
	assert.Equal(t, "Y", view.Location)
	assert.Empty(t, bridge.operations())
}

func TestGetCurrentStatusFallsThroughBrokenCache(t *testing.T) {
	bridge := newFakeBridge()
	bridge.stdout[ledger.OpGetCurrentStatus] = "1"
	svc := newTestLedgerService(bridge, ledger.Config{})
	cache := newMemoryCache()
	cache.err = errors.New("redis down")
	svc.SetStatusCache(cache)

	view, err := svc.GetCurrentStatus(context.Background(), "PROD-001")
	require.NoError(t, err)
	assert.Equal(t, "ledger", view.Source)
	assert.Equal(t, models.StatusInTransit, view.Status)
}

func TestMintValidatesAmount(t *testing.T) {
	bridge := newFakeBridge()
	svc := newTestLedgerService(bridge, ledger.Config{})

	for _, amount := range []string{"", "abc", "0", "-5", "1.5"} {
		_, err := svc.Mint(context.Background(), &TokenRequest{Wallet: "GWALLET", Amount: json.Number(amount)})
		assert.ErrorIs(t, err, ErrValidation, "amount %q", amount)
	}
	assert.Empty(t, bridge.operations())

	tx, err := svc.Mint(context.Background(), &TokenRequest{Wallet: "GWALLET", Amount: "100"})
	require.NoError(t, err)
	assert.Contains(t, tx, "tx-mint")
}

func TestTransferNeedsAdminKey(t *testing.T) {
	bridge := newFakeBridge()
	svc := newTestLedgerService(bridge, ledger.Config{})

	_, err := svc.Transfer(context.Background(), &TokenRequest{To: "GTO", Amount: "10"})
	assert.Equal(t, StageConfiguration, Stage(err))

	svc = newTestLedgerService(bridge, ledger.Config{AdminPublicKey: "GADMIN"})
	_, err = svc.Transfer(context.Background(), &TokenRequest{To: "GTO", Amount: "10"})
	require.NoError(t, err)
}

func TestRoles(t *testing.T) {
	bridge := newFakeBridge()
	bridge.stdout[ledger.OpGetRole] = "2"
	svc := newTestLedgerService(bridge, ledger.Config{})
	ctx := context.Background()

	_, err := svc.GrantRole(ctx, &RoleRequest{Addr: "GADDR"})
	assert.ErrorIs(t, err, ErrValidation)

	role := uint32(2)
	_, err = svc.GrantRole(ctx, &RoleRequest{Addr: "GADDR", Role: &role})
	require.NoError(t, err)

	got, err := svc.GetRole(ctx, "GADDR")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got)

	_, err = svc.RevokeRole(ctx, &RoleRequest{Addr: "GADDR"})
	require.NoError(t, err)

	assert.Equal(t, []string{ledger.OpGrantRole, ledger.OpGetRole, ledger.OpRevokeRole}, bridge.operations())
}

func TestStageClassification(t *testing.T) {
	assert.Equal(t, "", Stage(nil))
	assert.Equal(t, StageMirror, Stage(&MirrorError{TxHash: "tx", Err: errors.New("disk full")}))
	assert.Equal(t, StageConfiguration, Stage(ErrRemoteMirrorDisabled))
	assert.Equal(t, StageLedger, Stage(&ledger.InvocationError{Operation: "mint", Detail: "x"}))
	assert.Equal(t, StageInternal, Stage(errors.New("boom")))
}
