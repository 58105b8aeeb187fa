// Package config loads the immutable service configuration. A config struct
// is built once at startup from a yaml file plus environment overrides and
// passed by reference into each component; business logic never reads
// ambient environment state.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultMaxUploadBytes  = int64(64 << 20)
	defaultResolverTimeout = 15 * time.Second
	defaultCacheTTL        = 5 * time.Minute
	defaultJobConcurrency  = 5
	defaultJobResultTTL    = 24 * time.Hour
	defaultScanBlocks      = 50_000
	defaultGatewayURL      = "https://ipfs.io"
)

// Config is the root configuration for the provenance service.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Resolver ResolverConfig `yaml:"resolver"`
	Cache    CacheConfig    `yaml:"cache"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

type ServerConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// LedgerConfig selects and parameterizes the registry backend.
// Backend "ethereum" talks to the on-chain registry over RPC; "memory" runs
// the same state machine in process, for local development.
type LedgerConfig struct {
	Backend         string `yaml:"backend"`
	RPCURL          string `yaml:"rpc_url"`
	RegistryAddress string `yaml:"registry_address"`
	ChainID         int64  `yaml:"chain_id"`
	PrivateKey      string `yaml:"private_key"`
	// ScanBlocks bounds the event-log scan for proof generation to the most
	// recent N blocks. Ignored when StartBlock is set. A full-history scan is
	// never performed.
	ScanBlocks uint64 `yaml:"scan_blocks"`
	StartBlock uint64 `yaml:"start_block"`
}

type ResolverConfig struct {
	GatewayURL string        `yaml:"gateway_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	ContentTTL       time.Duration `yaml:"content_ttl"`
	ManifestTTL      time.Duration `yaml:"manifest_ttl"`
	BindingTTL       time.Duration `yaml:"binding_ttl"`
	VerificationsTTL time.Duration `yaml:"verifications_ttl"`
}

type JobsConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	StreamPrefix string        `yaml:"stream_prefix"`
	ResultTTL    time.Duration `yaml:"result_ttl"`
}

// Load reads the yaml file at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks cross-field requirements that defaults cannot satisfy.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case "memory":
	case "ethereum":
		if c.Ledger.RPCURL == "" {
			return errors.New("ledger.rpc_url is required for the ethereum backend")
		}
		if c.Ledger.RegistryAddress == "" {
			return errors.New("ledger.registry_address is required for the ethereum backend")
		}
		if c.Ledger.ChainID == 0 {
			return errors.New("ledger.chain_id is required for the ethereum backend")
		}
	default:
		return fmt.Errorf("ledger.backend must be \"ethereum\" or \"memory\", got %q", c.Ledger.Backend)
	}

	if c.Database.Host != "" && c.Database.DBName == "" {
		return errors.New("database.dbname is required when database.host is set")
	}
	if c.Jobs.Concurrency <= 0 {
		return fmt.Errorf("jobs.concurrency must be positive, got %d", c.Jobs.Concurrency)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8085"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = "ethereum"
	}
	if cfg.Ledger.ScanBlocks == 0 {
		cfg.Ledger.ScanBlocks = defaultScanBlocks
	}
	if cfg.Resolver.GatewayURL == "" {
		cfg.Resolver.GatewayURL = defaultGatewayURL
	}
	if cfg.Resolver.Timeout == 0 {
		cfg.Resolver.Timeout = defaultResolverTimeout
	}
	if cfg.Cache.ContentTTL == 0 {
		cfg.Cache.ContentTTL = defaultCacheTTL
	}
	if cfg.Cache.ManifestTTL == 0 {
		cfg.Cache.ManifestTTL = defaultCacheTTL
	}
	if cfg.Cache.BindingTTL == 0 {
		cfg.Cache.BindingTTL = defaultCacheTTL
	}
	if cfg.Cache.VerificationsTTL == 0 {
		cfg.Cache.VerificationsTTL = time.Minute
	}
	if cfg.Jobs.Concurrency == 0 {
		cfg.Jobs.Concurrency = defaultJobConcurrency
	}
	if cfg.Jobs.StreamPrefix == "" {
		cfg.Jobs.StreamPrefix = "provenance"
	}
	if cfg.Jobs.ResultTTL == 0 {
		cfg.Jobs.ResultTTL = defaultJobResultTTL
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("PROVENANCE_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("LEDGER_RPC_URL"); v != "" {
		cfg.Ledger.RPCURL = v
	}
	if v := os.Getenv("LEDGER_REGISTRY_ADDRESS"); v != "" {
		cfg.Ledger.RegistryAddress = v
	}
	if v := os.Getenv("LEDGER_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Ledger.ChainID = id
		}
	}
	if v := os.Getenv("LEDGER_PRIVATE_KEY"); v != "" {
		cfg.Ledger.PrivateKey = v
	}
	if v := os.Getenv("IPFS_GATEWAY_URL"); v != "" {
		cfg.Resolver.GatewayURL = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
