// Package config assembles the coordinator process's configuration: the
// ambient app config libs/config.Load reads, plus everything specific to
// running the lifecycle controller against real chains, a real store, and
// a real bus (Postgres, Kafka, Redis, per-chain RPC endpoints and
// signers). Every domain-specific value is env-driven the same way
// services/matching/internal/config does it, layered under the RELAYER_
// prefix libs/config already uses.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	base "github.com/goex/swaprelayer/libs/config"
)

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN renders a libpq connection string suitable for pgxpool.ParseConfig.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

type BusConfig struct {
	Brokers       []string
	ConsumerGroup string
	DLQTopic      string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ChainConfig configures one ethgateway.ChainClient plus the lifecycle
// tunables that apply per-chain: confirmation depth and minimum safety
// deposit.
type ChainConfig struct {
	ChainID          uint64
	RPCEndpoint      string
	SignerKeyHex     string
	EscrowFactory    string
	Confirmations    uint64
	MinSafetyDeposit *big.Int
}

// LifecycleConfig mirrors internal/lifecycle.Config's non-per-chain fields;
// cmd/relayer folds Chains' per-chain maps into it before constructing the
// controller.
type LifecycleConfig struct {
	DefaultOrderDuration     time.Duration
	FastAuctionDuration      time.Duration
	ResolverCommitmentWindow time.Duration
	SecretRevealDelay        time.Duration
	CompetitionWindow        time.Duration
	DefaultConfirmations     uint64
}

type Config struct {
	App       base.AppConfig
	DB        DBConfig
	Bus       BusConfig
	Redis     RedisConfig
	Chains    map[uint64]ChainConfig
	Lifecycle LifecycleConfig
	Resolvers ResolverConfig
}

// ResolverConfig seeds the coordinator's resolver key registry at startup.
// Real deployments manage keys through an admin flow; this covers the
// bootstrap resolver most deployments run with on day one.
type ResolverConfig struct {
	BootstrapKeyEnv string // env var holding a pre-generated "rk_env_prefix.secret" key
	BootstrapPrefix string
	BootstrapHash   string
	BootstrapAddr   string
}

func Load() (*Config, error) {
	appCfg, err := base.Load(os.Getenv("RELAYER_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: *appCfg,
		DB: DBConfig{
			Host:     envString("DB_HOST", "localhost"),
			Port:     envInt("DB_PORT", 5432),
			Name:     envString("DB_NAME", "swaprelayer"),
			User:     envString("DB_USER", "swaprelayer"),
			Password: envString("DB_PASSWORD", "swaprelayer"),
			SSLMode:  envString("DB_SSLMODE", "disable"),
		},
		Bus: BusConfig{
			Brokers:       envCSV("BUS_BROKERS", []string{"localhost:9092"}),
			ConsumerGroup: envString("BUS_CONSUMER_GROUP", "swap-relayer"),
			DLQTopic:      envString("BUS_DLQ_TOPIC", "swap-relayer.dlq"),
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		Lifecycle: LifecycleConfig{
			DefaultOrderDuration:     envDuration("ORDER_DURATION", 300*time.Second),
			FastAuctionDuration:      envDuration("AUCTION_DURATION", 60*time.Second),
			ResolverCommitmentWindow: envDuration("COMMITMENT_WINDOW", 5*time.Minute),
			SecretRevealDelay:        envDuration("SECRET_REVEAL_DELAY", 10*time.Second),
			CompetitionWindow:        envDuration("COMPETITION_WINDOW", 5*time.Minute),
			DefaultConfirmations:     uint64(envInt("DEFAULT_CONFIRMATIONS", 1)),
		},
		Resolvers: ResolverConfig{
			BootstrapKeyEnv: envString("BOOTSTRAP_RESOLVER_KEY_ENV", "RELAYER_BOOTSTRAP_RESOLVER_KEY"),
			BootstrapPrefix: envString("BOOTSTRAP_RESOLVER_PREFIX", ""),
			BootstrapHash:   envString("BOOTSTRAP_RESOLVER_KEY_HASH", ""),
			BootstrapAddr:   envString("BOOTSTRAP_RESOLVER_ADDR", ""),
		},
	}

	chains, err := loadChains()
	if err != nil {
		return nil, err
	}
	cfg.Chains = chains

	if len(cfg.Bus.Brokers) == 0 {
		return nil, fmt.Errorf("bus brokers required")
	}
	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("at least one RELAYER_CHAINS entry required")
	}

	return cfg, nil
}

// loadChains reads RELAYER_CHAINS as a CSV of chain-ids, then reads the
// remaining RELAYER_CHAIN_<id>_* variables for each one.
func loadChains() (map[uint64]ChainConfig, error) {
	ids := envCSV("CHAINS", nil)
	chains := make(map[uint64]ChainConfig, len(ids))

	for _, idStr := range ids {
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q in RELAYER_CHAINS: %w", idStr, err)
		}

		prefix := fmt.Sprintf("CHAIN_%d_", id)
		rpc := envString(prefix+"RPC", "")
		if rpc == "" {
			return nil, fmt.Errorf("RELAYER_%sRPC required for chain %d", prefix, id)
		}
		signerKey := envString(prefix+"SIGNER_KEY", "")
		factory := envString(prefix+"ESCROW_FACTORY", "")
		if factory == "" {
			return nil, fmt.Errorf("RELAYER_%sESCROW_FACTORY required for chain %d", prefix, id)
		}
		confirmations := uint64(envInt(prefix+"CONFIRMATIONS", 1))

		minDeposit := big.NewInt(0)
		if raw := envString(prefix+"MIN_SAFETY_DEPOSIT", ""); raw != "" {
			v, ok := new(big.Int).SetString(raw, 10)
			if !ok {
				return nil, fmt.Errorf("RELAYER_%sMIN_SAFETY_DEPOSIT must be a base-10 integer, got %q", prefix, raw)
			}
			minDeposit = v
		}

		chains[id] = ChainConfig{
			ChainID:          id,
			RPCEndpoint:      rpc,
			SignerKeyHex:     signerKey,
			EscrowFactory:    factory,
			Confirmations:    confirmations,
			MinSafetyDeposit: minDeposit,
		}
	}

	return chains, nil
}

func envString(key, def string) string {
	if v := os.Getenv("RELAYER_" + key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv("RELAYER_" + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv("RELAYER_" + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envCSV(key string, def []string) []string {
	v := os.Getenv("RELAYER_" + key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
