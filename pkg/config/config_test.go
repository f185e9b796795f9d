package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ============================================================================
// Load / Defaults Tests
// ============================================================================

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	yaml := `
network:
  identifier: mainnet-test
validator:
  id: validator-1
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pool.CommitRangeStored != 50 {
		t.Errorf("expected default commit_range_stored 50, got %d", cfg.Pool.CommitRangeStored)
	}
	if cfg.Pool.MessageTag != "LSK_CE_" {
		t.Errorf("expected default message tag LSK_CE_, got %q", cfg.Pool.MessageTag)
	}
	if cfg.Pool.BlockTime.Duration() != 10*time.Second {
		t.Errorf("expected default block time 10s, got %v", cfg.Pool.BlockTime.Duration())
	}
	if cfg.Monitoring.Metrics.Addr != ":9090" {
		t.Errorf("expected default metrics addr :9090, got %q", cfg.Monitoring.Metrics.Addr)
	}
}

func TestLoadEnvVarSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	yaml := `
network:
  identifier: ${NETWORK_ID:-fallback-net}
validator:
  id: ${VALIDATOR_ID}
database:
  dsn: ${POOL_DB_DSN}
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	os.Setenv("VALIDATOR_ID", "validator-from-env")
	defer os.Unsetenv("VALIDATOR_ID")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Network.Identifier != "fallback-net" {
		t.Errorf("expected fallback network identifier, got %q", cfg.Network.Identifier)
	}
	if cfg.Validator.ID != "validator-from-env" {
		t.Errorf("expected env-substituted validator id, got %q", cfg.Validator.ID)
	}
}

func TestLoadMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	if err := os.WriteFile(path, []byte("network:\n  identifier: net\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for missing validator.id")
	}
}

func TestLoadDatabaseRequiredWithoutDSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	yaml := `
network:
  identifier: net
validator:
  id: v1
database:
  required: true
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for required database without dsn")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	yaml := `
network:
  identifier: net
validator:
  id: v1
pool:
  block_time: 2s
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pool.BlockTime.Duration() != 2*time.Second {
		t.Errorf("expected 2s block time, got %v", cfg.Pool.BlockTime.Duration())
	}
}
