package config

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"contribmine/native/mining"
)

// Duration wraps time.Duration to support YAML and TOML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText parses human readable duration strings.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for minerd.
type Config struct {
	ListenAddress string            `yaml:"listen" toml:"listen"`
	Environment   string            `yaml:"env" toml:"env"`
	Storage       StorageConfig     `yaml:"storage" toml:"storage"`
	Index         IndexConfig       `yaml:"index" toml:"index"`
	Chain         ChainConfig       `yaml:"chain" toml:"chain"`
	Mining        MiningConfig      `yaml:"mining" toml:"mining"`
	Treasury      TreasuryConfig    `yaml:"treasury" toml:"treasury"`
	Communities   []CommunityConfig `yaml:"communities" toml:"communities"`
	Allocations   []Allocation      `yaml:"allocations" toml:"allocations"`
	Auth          AuthConfig        `yaml:"auth" toml:"auth"`
	RateLimit     RateLimitConfig   `yaml:"rate_limit" toml:"rate_limit"`
	Quota         QuotaConfig       `yaml:"quota" toml:"quota"`
	Logging       LoggingConfig     `yaml:"logging" toml:"logging"`
	Telemetry     TelemetryConfig   `yaml:"telemetry" toml:"telemetry"`
}

// StorageConfig selects the ledger state backend.
type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
}

// IndexConfig configures the event indexer database.
type IndexConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// ChainConfig anchors the block clock.
type ChainConfig struct {
	GenesisTime         string   `yaml:"genesis_time" toml:"genesis_time"`
	BlockInterval       Duration `yaml:"block_interval" toml:"block_interval"`
	StartBlock          uint64   `yaml:"start_block" toml:"start_block"`
	FirstRewardPerBlock string   `yaml:"first_reward_per_block" toml:"first_reward_per_block"`
}

// MiningConfig mirrors mining.Params with string encoded accounts.
type MiningConfig struct {
	PeriodLength           uint64  `yaml:"period_length" toml:"period_length"`
	DecayNumerator         uint64  `yaml:"decay_numerator" toml:"decay_numerator"`
	DecayDenominator       uint64  `yaml:"decay_denominator" toml:"decay_denominator"`
	ClaimDelay             uint64  `yaml:"claim_delay" toml:"claim_delay"`
	StakingDonationRatio   uint64  `yaml:"staking_donation_ratio" toml:"staking_donation_ratio"`
	CommunityDonationRatio uint64  `yaml:"community_donation_ratio" toml:"community_donation_ratio"`
	WindowSize             *uint64 `yaml:"window_size" toml:"window_size"`
	BlocksPerYear          uint64  `yaml:"blocks_per_year" toml:"blocks_per_year"`
	NativeAsset            string  `yaml:"native_asset" toml:"native_asset"`
	RewardAsset            string  `yaml:"reward_asset" toml:"reward_asset"`
	MinerAccount           string  `yaml:"miner_account" toml:"miner_account"`
	TreasuryAccount        string  `yaml:"treasury_account" toml:"treasury_account"`
	StakingAccount         string  `yaml:"staking_account" toml:"staking_account"`
}

// TreasuryConfig lists the foreign assets accepted for direct contributions.
type TreasuryConfig struct {
	Rates []AssetRate `yaml:"rates" toml:"rates"`
}

// AssetRate converts one unit of Asset into Numerator/Denominator native units.
type AssetRate struct {
	Asset       string `yaml:"asset" toml:"asset"`
	Numerator   string `yaml:"numerator" toml:"numerator"`
	Denominator string `yaml:"denominator" toml:"denominator"`
}

// CommunityConfig registers an authorized sub-organization.
type CommunityConfig struct {
	Address string `yaml:"address" toml:"address"`
	Name    string `yaml:"name" toml:"name"`
	Asset   string `yaml:"asset" toml:"asset"`
}

// Allocation seeds an account balance at first start.
type Allocation struct {
	Account string `yaml:"account" toml:"account"`
	Asset   string `yaml:"asset" toml:"asset"`
	Amount  string `yaml:"amount" toml:"amount"`
}

// AuthConfig configures bearer token validation for privileged routes.
type AuthConfig struct {
	HMACSecret string   `yaml:"hmac_secret" toml:"hmac_secret"`
	Issuer     string   `yaml:"issuer" toml:"issuer"`
	Audience   string   `yaml:"audience" toml:"audience"`
	ClockSkew  Duration `yaml:"clock_skew" toml:"clock_skew"`
}

// RateLimitConfig throttles public API clients.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int     `yaml:"burst" toml:"burst"`
	TrustProxyHeaders bool    `yaml:"trust_proxy_headers" toml:"trust_proxy_headers"`
}

// QuotaConfig bounds contributions per contributor and reward period.
type QuotaConfig struct {
	MaxContributionsPerPeriod uint32 `yaml:"max_contributions_per_period" toml:"max_contributions_per_period"`
	MaxValuePerPeriod         string `yaml:"max_value_per_period" toml:"max_value_per_period"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// TelemetryConfig configures OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint" toml:"endpoint"`
	Insecure    bool    `yaml:"insecure" toml:"insecure"`
	Traces      bool    `yaml:"traces" toml:"traces"`
	Metrics     bool    `yaml:"metrics" toml:"metrics"`
	SampleRatio float64 `yaml:"sample_ratio" toml:"sample_ratio"`
}

// Load reads configuration from the supplied path. Files ending in .toml are
// decoded as TOML with unknown keys rejected, anything else as YAML.
func Load(path string) (Config, error) {
	cfg := Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			return cfg, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
	default:
		file, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "leveldb"
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Path == "" && cfg.Storage.Backend != "memory" {
		cfg.Storage.Path = "/var/data/minerd/state"
	}
	if cfg.Index.Driver == "" {
		cfg.Index.Driver = "sqlite"
	}
	cfg.Index.Driver = strings.ToLower(strings.TrimSpace(cfg.Index.Driver))
	if cfg.Index.DSN == "" && cfg.Index.Driver == "sqlite" {
		cfg.Index.DSN = "/var/data/minerd/index.sqlite"
	}
	if cfg.Chain.BlockInterval.Duration == 0 {
		cfg.Chain.BlockInterval.Duration = 5 * time.Second
	}
	if cfg.Chain.FirstRewardPerBlock == "" {
		cfg.Chain.FirstRewardPerBlock = "1000000000000000000"
	}
	defaults := mining.DefaultParams()
	if cfg.Mining.PeriodLength == 0 {
		cfg.Mining.PeriodLength = defaults.PeriodLength
	}
	if cfg.Mining.DecayNumerator == 0 && cfg.Mining.DecayDenominator == 0 {
		cfg.Mining.DecayNumerator = defaults.DecayNumerator
		cfg.Mining.DecayDenominator = defaults.DecayDenominator
	}
	if cfg.Mining.ClaimDelay == 0 {
		cfg.Mining.ClaimDelay = defaults.ClaimDelay
	}
	if cfg.Mining.StakingDonationRatio == 0 {
		cfg.Mining.StakingDonationRatio = defaults.StakingDonationRatio
	}
	if cfg.Mining.CommunityDonationRatio == 0 {
		cfg.Mining.CommunityDonationRatio = defaults.CommunityDonationRatio
	}
	if cfg.Mining.WindowSize == nil {
		size := defaults.WindowSize
		cfg.Mining.WindowSize = &size
	}
	if cfg.Mining.BlocksPerYear == 0 {
		cfg.Mining.BlocksPerYear = defaults.BlocksPerYear
	}
	if cfg.Mining.NativeAsset == "" {
		cfg.Mining.NativeAsset = defaults.NativeAsset
	}
	if cfg.Mining.RewardAsset == "" {
		cfg.Mining.RewardAsset = defaults.RewardAsset
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1
	}
}

func validate(cfg Config) error {
	switch cfg.Storage.Backend {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("storage.backend %q not supported", cfg.Storage.Backend)
	}
	switch cfg.Index.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("index.driver %q not supported", cfg.Index.Driver)
	}
	if strings.TrimSpace(cfg.Index.DSN) == "" {
		return errors.New("index.dsn must be configured")
	}
	if cfg.Chain.BlockInterval.Duration < 0 {
		return errors.New("chain.block_interval must be positive")
	}
	if _, err := cfg.GenesisTime(); err != nil {
		return err
	}
	if _, err := cfg.FirstRewardPerBlock(); err != nil {
		return err
	}
	if _, err := cfg.Params(); err != nil {
		return err
	}
	for _, rate := range cfg.Treasury.Rates {
		if strings.TrimSpace(rate.Asset) == "" {
			return errors.New("treasury rate asset must be set")
		}
		if _, err := ParseAmount(rate.Numerator); err != nil {
			return fmt.Errorf("treasury rate %s numerator: %w", rate.Asset, err)
		}
		if _, err := ParseAmount(rate.Denominator); err != nil {
			return fmt.Errorf("treasury rate %s denominator: %w", rate.Asset, err)
		}
	}
	for _, community := range cfg.Communities {
		if _, err := ParseAddress(community.Address); err != nil {
			return fmt.Errorf("community %q: %w", community.Name, err)
		}
	}
	for _, alloc := range cfg.Allocations {
		if _, err := ParseAddress(alloc.Account); err != nil {
			return fmt.Errorf("allocation: %w", err)
		}
		if _, err := ParseAmount(alloc.Amount); err != nil {
			return fmt.Errorf("allocation %s: %w", alloc.Account, err)
		}
	}
	if _, err := cfg.QuotaValue(); err != nil {
		return err
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return errors.New("rate_limit values must be positive")
	}
	return nil
}

// GenesisTime returns the wall-clock time of block zero. An unset value
// anchors the clock at the Unix epoch.
func (c Config) GenesisTime() (time.Time, error) {
	raw := strings.TrimSpace(c.Chain.GenesisTime)
	if raw == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("chain.genesis_time: %w", err)
	}
	return parsed.UTC(), nil
}

// FirstRewardPerBlock parses the undecayed rate of period 1.
func (c Config) FirstRewardPerBlock() (*big.Int, error) {
	amount, err := ParseAmount(c.Chain.FirstRewardPerBlock)
	if err != nil {
		return nil, fmt.Errorf("chain.first_reward_per_block: %w", err)
	}
	if amount.Sign() == 0 {
		return nil, errors.New("chain.first_reward_per_block must be positive")
	}
	return amount, nil
}

// Params converts the mining section into validated engine parameters.
func (c Config) Params() (*mining.Params, error) {
	m := c.Mining
	miner, err := ParseAddress(m.MinerAccount)
	if err != nil {
		return nil, fmt.Errorf("mining.miner_account: %w", err)
	}
	treasury, err := ParseAddress(m.TreasuryAccount)
	if err != nil {
		return nil, fmt.Errorf("mining.treasury_account: %w", err)
	}
	var staking common.Address
	if strings.TrimSpace(m.StakingAccount) != "" {
		if staking, err = ParseAddress(m.StakingAccount); err != nil {
			return nil, fmt.Errorf("mining.staking_account: %w", err)
		}
	}
	params := &mining.Params{
		PeriodLength:           m.PeriodLength,
		DecayNumerator:         m.DecayNumerator,
		DecayDenominator:       m.DecayDenominator,
		ClaimDelay:             m.ClaimDelay,
		StakingDonationRatio:   m.StakingDonationRatio,
		CommunityDonationRatio: m.CommunityDonationRatio,
		WindowSize:             mining.DefaultWindowSize,
		BlocksPerYear:          m.BlocksPerYear,
		NativeAsset:            m.NativeAsset,
		RewardAsset:            m.RewardAsset,
		MinerAccount:           miner,
		TreasuryAccount:        treasury,
		StakingAccount:         staking,
	}
	if m.WindowSize != nil {
		params.WindowSize = *m.WindowSize
	}
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// QuotaValue parses the optional per-period contribution value cap.
func (c Config) QuotaValue() (*big.Int, error) {
	if strings.TrimSpace(c.Quota.MaxValuePerPeriod) == "" {
		return nil, nil
	}
	value, err := ParseAmount(c.Quota.MaxValuePerPeriod)
	if err != nil {
		return nil, fmt.Errorf("quota.max_value_per_period: %w", err)
	}
	return value, nil
}

// ParseAmount parses a non-negative base-10 integer.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", raw)
	}
	return value, nil
}

// ParseAddress parses a hex encoded account address.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}
