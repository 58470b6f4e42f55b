package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"provenance-service/internal/ledger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
	Ledger   LedgerConfig
	Mirror   MirrorConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig points at the remote mirror. Empty disables it.
type DatabaseConfig struct {
	URL string
}

// RedisConfig points at the status cache. An empty Addr disables it.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	StatusTTL time.Duration
}

// KafkaConfig enables asynchronous remote mirroring when Brokers is set.
type KafkaConfig struct {
	Brokers         []string
	TopicProvenance string
	ConsumerGroup   string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

type LedgerConfig struct {
	Binary            string
	ContractID        string
	AdminAlias        string
	AdminPublicKey    string
	RPCURL            string
	NetworkPassphrase string
	Timeout           time.Duration
}

type MirrorConfig struct {
	Dir string
}

// Load reads the configuration from the environment and an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "4000"),
			Env:      getEnv("ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", ""),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getInt("REDIS_DB", 0),
			StatusTTL: getDuration("STATUS_CACHE_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(getEnv("KAFKA_BROKERS", "")),
			TopicProvenance: getEnv("KAFKA_TOPIC_PROVENANCE", "provenance-events"),
			ConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "provenance-mirror-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
		Ledger: LedgerConfig{
			Binary:            getEnv("LEDGER_BIN", "stellar"),
			ContractID:        getEnv("CONTRACT_ID", ""),
			AdminAlias:        getEnv("ADMIN_ALIAS", "admin"),
			AdminPublicKey:    getEnv("ADMIN_PUBLIC_KEY", ""),
			RPCURL:            getEnv("SOROBAN_RPC_URL", ""),
			NetworkPassphrase: getEnv("SOROBAN_NETWORK_PASSPHRASE", ""),
			Timeout:           getDuration("LEDGER_TIMEOUT", ledger.DefaultTimeout),
		},
		Mirror: MirrorConfig{
			Dir: getEnv("MIRROR_DIR", "data"),
		},
	}

	return cfg
}

// LogSummary logs the effective configuration without secrets.
func (c *Config) LogSummary(logger *zap.Logger) {
	logger.Info("Config loaded",
		zap.String("env", c.Server.Env),
		zap.String("port", c.Server.Port),
		zap.String("ledger_bin", c.Ledger.Binary),
		zap.Bool("contract_configured", c.Ledger.ContractID != ""),
		zap.String("mirror_dir", c.Mirror.Dir),
		zap.Bool("remote_mirror", c.Database.URL != ""),
		zap.Bool("status_cache", c.Redis.Addr != ""),
		zap.Strings("kafka_brokers", c.Kafka.Brokers))
}

// InvokerConfig converts the ledger section for the invoker.
func (c *Config) InvokerConfig() ledger.Config {
	return ledger.Config{
		Binary:            c.Ledger.Binary,
		ContractID:        c.Ledger.ContractID,
		SourceAccount:     c.Ledger.AdminAlias,
		AdminPublicKey:    c.Ledger.AdminPublicKey,
		RPCURL:            c.Ledger.RPCURL,
		NetworkPassphrase: c.Ledger.NetworkPassphrase,
		Timeout:           c.Ledger.Timeout,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return n
}

// getDuration accepts Go durations ("90s") or a plain number of seconds.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := getEnv(key, "")
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
