// Package config loads commit pool configuration from a YAML document,
// with ${VAR_NAME} / ${VAR_NAME:-default} environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Mirror commitpool.CommitRangeStored / commitpool.MessageTagCertificate:
// config has no import relationship with the pool package, so the protocol
// constants are restated here rather than imported.
const (
	defaultCommitRangeStored = 50
	defaultMessageTag        = "LSK_CE_"
)

// PoolConfig holds all configuration for the commit pool node.
type PoolConfig struct {
	Environment string `yaml:"environment"`

	Network   NetworkSettings   `yaml:"network"`
	Pool      PoolSettings      `yaml:"pool"`
	Validator ValidatorSettings `yaml:"validator"`
	CometBFT  CometBFTSettings  `yaml:"cometbft"`
	Database  DatabaseSettings  `yaml:"database"`
	Monitoring MonitoringSettings `yaml:"monitoring"`
}

// NetworkSettings identifies the chain this node participates in.
type NetworkSettings struct {
	Identifier string `yaml:"identifier"` // networkIdentifier, mixed into certificate domain separation
	ChainID    string `yaml:"chain_id"`
}

// PoolSettings controls commit pool sizing and timing, per C4/C5. The job
// tick cadence is BlockTime itself (§4.5 runs once per block), and the
// gossip batch cap is the protocol-fixed 2*|currentValidators| (§4.5 step
// 5), so neither is independently configurable here.
type PoolSettings struct {
	BlockTime         Duration `yaml:"block_time"`
	CommitRangeStored uint32   `yaml:"commit_range_stored"`
	MessageTag        string   `yaml:"message_tag"`
}

// ValidatorSettings contains this node's own validator identity.
type ValidatorSettings struct {
	ID               string `yaml:"id"`
	BLSKeyPath       string `yaml:"bls_key_path"`
	GenerateFromSeed bool   `yaml:"generate_from_seed"`
}

// CometBFTSettings points at the BFT consensus engine this pool oracles against.
type CometBFTSettings struct {
	RPCEndpoint string   `yaml:"rpc_endpoint"`
	RPCTimeout  Duration `yaml:"rpc_timeout"`
}

// DatabaseSettings reserves a persistence seam; the pool itself is in-memory.
type DatabaseSettings struct {
	DSN      string `yaml:"dsn"`
	Enabled  bool   `yaml:"enabled"`
	Required bool   `yaml:"required"`
}

// MonitoringSettings contains Prometheus and logging configuration.
type MonitoringSettings struct {
	Metrics MetricsSettings `yaml:"metrics"`
	Logging LoggingSettings `yaml:"logging"`
}

// MetricsSettings contains Prometheus metrics server configuration.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingSettings contains logging configuration.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads pool configuration from a YAML file, substituting environment
// variables and applying defaults for unset fields.
func Load(path string) (*PoolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg PoolConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *PoolConfig) applyDefaults() {
	if c.Pool.BlockTime == 0 {
		c.Pool.BlockTime = Duration(10 * time.Second)
	}
	if c.Pool.CommitRangeStored == 0 {
		c.Pool.CommitRangeStored = defaultCommitRangeStored
	}
	if c.Pool.MessageTag == "" {
		c.Pool.MessageTag = defaultMessageTag
	}
	if c.CometBFT.RPCTimeout == 0 {
		c.CometBFT.RPCTimeout = Duration(5 * time.Second)
	}
	if c.Monitoring.Metrics.Addr == "" {
		c.Monitoring.Metrics.Addr = ":9090"
	}
	if c.Monitoring.Metrics.Path == "" {
		c.Monitoring.Metrics.Path = "/metrics"
	}
	if c.Monitoring.Logging.Level == "" {
		c.Monitoring.Logging.Level = "info"
	}
	if c.Monitoring.Logging.Format == "" {
		c.Monitoring.Logging.Format = "plain"
	}
}

// Validate checks that required fields are present and internally consistent.
func (c *PoolConfig) Validate() error {
	if c.Network.Identifier == "" {
		return fmt.Errorf("network.identifier is required")
	}
	if c.Validator.ID == "" {
		return fmt.Errorf("validator.id is required")
	}
	if c.Database.Required && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.required is set")
	}
	if c.Pool.CommitRangeStored == 0 {
		return fmt.Errorf("pool.commit_range_stored must be non-zero")
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}

		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
