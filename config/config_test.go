package config

import (
	"testing"
	"time"

	"provenance-service/internal/ledger"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "REDIS_ADDR", "KAFKA_BROKERS", "CONTRACT_ID", "LEDGER_BIN", "LEDGER_TIMEOUT", "MIRROR_DIR", "ADMIN_ALIAS", "STATUS_CACHE_TTL"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "stellar", cfg.Ledger.Binary)
	assert.Equal(t, "admin", cfg.Ledger.AdminAlias)
	assert.Equal(t, ledger.DefaultTimeout, cfg.Ledger.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.Redis.StatusTTL)
	assert.Equal(t, "data", cfg.Mirror.Dir)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CONTRACT_ID", "CCONTRACT")
	t.Setenv("LEDGER_TIMEOUT", "90")
	t.Setenv("STATUS_CACHE_TTL", "30s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SOROBAN_RPC_URL", "https://rpc.example")

	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Redis.StatusTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Redis.DB)

	inv := cfg.InvokerConfig()
	assert.Equal(t, "CCONTRACT", inv.ContractID)
	assert.Equal(t, "https://rpc.example", inv.RPCURL)
	assert.Equal(t, 90*time.Second, inv.Timeout)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("LEDGER_TIMEOUT", "soon")
	assert.Equal(t, ledger.DefaultTimeout, Load().Ledger.Timeout)
}
