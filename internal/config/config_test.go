package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originmark/provenance/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalYAML = `
ledger:
  backend: memory
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8085", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, int64(64<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
	assert.Equal(t, uint64(50_000), cfg.Ledger.ScanBlocks)
	assert.Equal(t, "https://ipfs.io", cfg.Resolver.GatewayURL)
	assert.Equal(t, 15*time.Second, cfg.Resolver.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ContentTTL)
	assert.Equal(t, time.Minute, cfg.Cache.VerificationsTTL)
	assert.Equal(t, 5, cfg.Jobs.Concurrency)
	assert.Equal(t, "provenance", cfg.Jobs.StreamPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.ResultTTL)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
}

func TestLoadFullFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
debug: true
server:
  address: ":9090"
ledger:
  backend: ethereum
  rpc_url: https://polygon-rpc.example.com
  registry_address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
  chain_id: 137
  scan_blocks: 1000
resolver:
  gateway_url: https://gateway.example.com/
  timeout: 5s
jobs:
  concurrency: 3
`))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "ethereum", cfg.Ledger.Backend)
	assert.Equal(t, int64(137), cfg.Ledger.ChainID)
	assert.Equal(t, uint64(1000), cfg.Ledger.ScanBlocks)
	assert.Equal(t, 5*time.Second, cfg.Resolver.Timeout)
	assert.Equal(t, 3, cfg.Jobs.Concurrency)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_DEBUG", "true")
	t.Setenv("PROVENANCE_PORT", "8099")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("LEDGER_RPC_URL", "https://rpc.internal")
	t.Setenv("LEDGER_REGISTRY_ADDRESS", "0xabc")
	t.Setenv("LEDGER_CHAIN_ID", "80001")
	t.Setenv("IPFS_GATEWAY_URL", "https://gw.internal")

	cfg, err := config.Load(writeConfig(t, "ledger:\n  backend: ethereum\n"))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, ":8099", cfg.Server.Address)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "https://rpc.internal", cfg.Ledger.RPCURL)
	assert.Equal(t, "0xabc", cfg.Ledger.RegistryAddress)
	assert.Equal(t, int64(80001), cfg.Ledger.ChainID)
	assert.Equal(t, "https://gw.internal", cfg.Resolver.GatewayURL)
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "ledger:\n  backend: dynamodb\n"},
		{"ethereum missing rpc url", "ledger:\n  backend: ethereum\n  registry_address: \"0xabc\"\n  chain_id: 1\n"},
		{"ethereum missing registry address", "ledger:\n  backend: ethereum\n  rpc_url: https://rpc\n  chain_id: 1\n"},
		{"ethereum missing chain id", "ledger:\n  backend: ethereum\n  rpc_url: https://rpc\n  registry_address: \"0xabc\"\n"},
		{"database host without name", minimalYAML + "database:\n  host: db.internal\n"},
		{"negative concurrency", minimalYAML + "jobs:\n  concurrency: -1\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "ledger: [not: a map"))
	assert.Error(t, err)
}
