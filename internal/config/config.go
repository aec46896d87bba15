package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"ShardBoard/internal/auth"
	"ShardBoard/internal/state"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "shardboard"

// Config holds the node configuration.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string `yaml:"dataPath" envconfig:"DATA_PATH"`

	// HTTPAddress is the HTTP API listen address.
	HTTPAddress string `yaml:"httpAddress" envconfig:"HTTP_ADDRESS"`

	// KeyPath is the node's BLS key file (generated if missing).
	KeyPath string `yaml:"keyPath" envconfig:"KEY_PATH"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"logLevel" envconfig:"LOG_LEVEL"`

	// BlockInterval is the time between blocks.
	BlockInterval time.Duration `yaml:"blockInterval" envconfig:"BLOCK_INTERVAL"`

	// QueueSize bounds the operations waiting for the next block.
	QueueSize int `yaml:"queueSize" envconfig:"QUEUE_SIZE"`

	// AttestationPeriod is the number of blocks a buffered post accepts votes.
	AttestationPeriod uint64 `yaml:"attestationPeriod" envconfig:"ATTESTATION_PERIOD"`

	// Admins lists the hex account ids allowed to create boards and set attesters.
	Admins []string `yaml:"admins" envconfig:"ADMINS"`

	// Limits bounds board metadata and committees.
	Limits Limits `yaml:"limits" envconfig:"LIMITS"`

	// Genesis describes the boards created on an empty store.
	Genesis Genesis `yaml:"genesis" ignored:"true"`
}

// Limits mirrors state.Limits with configuration tags.
type Limits struct {
	MaxNameLength   uint32 `yaml:"maxNameLength"   envconfig:"MAX_NAME_LENGTH"`
	MaxDescLength   uint32 `yaml:"maxDescLength"   envconfig:"MAX_DESC_LENGTH"`
	MaxRulesLength  uint32 `yaml:"maxRulesLength"  envconfig:"MAX_RULES_LENGTH"`
	AttesterSetSize uint32 `yaml:"attesterSetSize" envconfig:"ATTESTER_SET_SIZE"`
	MaxShards       uint8  `yaml:"maxShards"       envconfig:"MAX_SHARDS"`
}

// Genesis is the initial board layout.
type Genesis struct {
	// Attesters is the pool committees are drawn from (hex account ids).
	Attesters []string `yaml:"attesters"`

	// CommitteeSize is the number of attesters assigned to each shard.
	CommitteeSize int `yaml:"committeeSize"`

	// Boards are created in order, so the first gets index 0.
	Boards []GenesisBoard `yaml:"boards"`
}

// GenesisBoard describes one initial board.
type GenesisBoard struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	Rules          string `yaml:"rules"`
	MaxThreads     uint16 `yaml:"maxThreads"`
	PostsPerThread uint16 `yaml:"postsPerThread"`
	Shards         uint8  `yaml:"shards"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	limits := state.DefaultLimits()

	return &Config{
		DataPath:          "./data",
		HTTPAddress:       ":8080",
		LogLevel:          "info",
		BlockInterval:     time.Second,
		QueueSize:         1024,
		AttestationPeriod: 20,
		Limits: Limits{
			MaxNameLength:   limits.MaxNameLength,
			MaxDescLength:   limits.MaxDescLength,
			MaxRulesLength:  limits.MaxRulesLength,
			AttesterSetSize: limits.AttesterSetSize,
			MaxShards:       uint8(limits.MaxShards),
		},
		Genesis: Genesis{CommitteeSize: 3},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file:\n%w", err)
		}

		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s:\n%w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment:\n%w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that have no safe fallback.
func (c *Config) Validate() error {
	var errs []error

	if c.DataPath == "" {
		errs = append(errs, errors.New("dataPath is empty"))
	}

	if c.BlockInterval <= 0 {
		errs = append(errs, fmt.Errorf("blockInterval must be positive, got %s", c.BlockInterval))
	}

	if c.AttestationPeriod == 0 {
		errs = append(errs, errors.New("attestationPeriod must be positive"))
	}

	if c.Limits.MaxShards == 0 {
		errs = append(errs, errors.New("limits.maxShards must be positive"))
	}

	if c.Limits.AttesterSetSize == 0 {
		errs = append(errs, errors.New("limits.attesterSetSize must be positive"))
	}

	if _, err := c.AdminAccounts(); err != nil {
		errs = append(errs, err)
	}

	if len(c.Genesis.Boards) > 0 {
		if c.Genesis.CommitteeSize <= 0 {
			errs = append(errs, errors.New("genesis.committeeSize must be positive"))
		}

		if len(c.Genesis.Attesters) < c.Genesis.CommitteeSize {
			errs = append(errs, fmt.Errorf("genesis has %d attesters for committees of %d", len(c.Genesis.Attesters), c.Genesis.CommitteeSize))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n%w", errors.Join(errs...))
	}

	return nil
}

// StateLimits converts the configured limits.
func (c *Config) StateLimits() state.Limits {
	return state.Limits{
		MaxNameLength:   c.Limits.MaxNameLength,
		MaxDescLength:   c.Limits.MaxDescLength,
		MaxRulesLength:  c.Limits.MaxRulesLength,
		AttesterSetSize: c.Limits.AttesterSetSize,
		MaxShards:       state.ShardIndex(c.Limits.MaxShards),
	}
}

// AdminAccounts decodes the admin list.
func (c *Config) AdminAccounts() ([]state.AccountID, error) {
	return parseAccounts(c.Admins, "admins")
}

// GenesisAttesters decodes the genesis attester pool.
func (c *Config) GenesisAttesters() ([]state.AccountID, error) {
	return parseAccounts(c.Genesis.Attesters, "genesis.attesters")
}

// parseAccounts decodes a list of hex account ids.
func parseAccounts(list []string, field string) ([]state.AccountID, error) {
	out := make([]state.AccountID, 0, len(list))

	for i, s := range list {
		a, err := auth.ParseAccount(s)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]:\n%w", field, i, err)
		}
		out = append(out, a)
	}

	return out, nil
}
