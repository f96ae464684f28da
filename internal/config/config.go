package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig    `yaml:"log"`
	REST      RESTConfig       `yaml:"rest"`
	Fetcher   FetcherConfig    `yaml:"fetcher"`
	Exchanges []string         `yaml:"exchanges"`
	Tiers     TierConfig       `yaml:"tiers"`
	Discovery DiscoveryConfig  `yaml:"discovery"`
	Summary   SummaryConfig    `yaml:"summary"`
	State     StateConfig      `yaml:"state"`
	Telegram  TelegramConfig   `yaml:"telegram"`

	ThresholdOverrides []ThresholdOverride `yaml:"thresholds"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// FetcherConfig tunes the rate-limited fetcher's concurrency gate, pacing
// delays, and retry backoff (spec.md §4.1).
type FetcherConfig struct {
	MaxConcurrent   int           `yaml:"max_concurrent"`
	RequestDelay    time.Duration `yaml:"request_delay"`
	// BurstSize is B (spec.md §4.1): the number of completed requests
	// after which an extra BatchPause is injected, independent of
	// MaxConcurrent (C), the in-flight concurrency cap.
	BurstSize       int           `yaml:"burst_size"`
	BatchPause      time.Duration `yaml:"batch_pause"`
	SubExchangeGap  time.Duration `yaml:"sub_exchange_gap"`
	BackoffMin      time.Duration `yaml:"backoff_min"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
	MaxAttempts     int           `yaml:"max_attempts"`
	// MarkCacheTTL bounds how long an allMids snapshot is reused across
	// refresh cycles targeting the same exchange (spec.md §4.3).
	MarkCacheTTL time.Duration `yaml:"mark_cache_ttl"`
}

// TierConfig holds the distance thresholds and refresh cadence for each
// liquidation-proximity tier, plus the hysteresis re-arm bands (spec.md
// §4.3-4.4).
type TierConfig struct {
	CriticalDistancePct float64       `yaml:"critical_distance_pct"`
	HighDistancePct     float64       `yaml:"high_distance_pct"`
	MaxWatchPct         float64       `yaml:"max_watch_pct"`

	CriticalRefresh time.Duration `yaml:"critical_refresh"`
	HighRefresh     time.Duration `yaml:"high_refresh"`
	NormalRefresh   time.Duration `yaml:"normal_refresh"`

	ApproachingRearmPct float64 `yaml:"approaching_rearm_pct"`
	CriticalRearmPct    float64 `yaml:"critical_rearm_pct"`
}

// DiscoveryConfig tunes the cohort discovery loop's adaptive interval
// (spec.md §4.5), using the two-weight pressure formula recovered from
// the original implementation: base + critical*criticalWeight +
// high*highWeight, clamped to [min, max] seconds.
type DiscoveryConfig struct {
	BaseIntervalSec     float64 `yaml:"base_interval_sec"`
	CriticalWeight      float64 `yaml:"critical_weight"`
	HighWeight          float64 `yaml:"high_weight"`
	MinIntervalSec      float64 `yaml:"min_interval_sec"`
	MaxIntervalSec      float64 `yaml:"max_interval_sec"`
	PageSize            int     `yaml:"page_size"`
	InfrequentNotionalUSD float64       `yaml:"infrequent_notional_usd"`
	InfrequentRescan      time.Duration `yaml:"infrequent_rescan"`

	// CohortIDs lists the leaderboard/cohort identifiers walked each
	// discovery cycle, e.g. "size-top", "pnl-top" (spec.md §4.5 step 1).
	CohortIDs []string `yaml:"cohort_ids"`
	// MinAggregateValueUSD is the minimum long+short notional a cohort
	// entry must carry to be registered as a wallet worth watching.
	MinAggregateValueUSD float64 `yaml:"min_aggregate_value_usd"`
	// LiqHistoryMinNotionalUSD filters the historical liquidation feed
	// (spec.md §4.5 step 2): a sighting below this notional is imported
	// into the feed table but not registered as a wallet to watch.
	LiqHistoryMinNotionalUSD float64 `yaml:"liq_history_min_notional_usd"`
}

// SummaryConfig configures the wall-clock daily summary trigger (spec.md
// §4.8).
type SummaryConfig struct {
	Time     string `yaml:"time"`     // "HH:MM", 24h
	Timezone string `yaml:"timezone"` // IANA name
}

type StateConfig struct {
	SQLitePath     string        `yaml:"sqlite_path"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

// ThresholdOverride replaces the built-in notional threshold table entry
// for one exchange/token pair.
type ThresholdOverride struct {
	Exchange string  `yaml:"exchange"`
	Token    string  `yaml:"token"`
	CrossUSD float64 `yaml:"cross_usd"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.hyperliquid.xyz"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if len(cfg.Exchanges) == 0 {
		cfg.Exchanges = []string{"main", "xyz", "flx", "hyna", "km"}
	}

	if cfg.Fetcher.MaxConcurrent == 0 {
		cfg.Fetcher.MaxConcurrent = 5
	}
	if cfg.Fetcher.RequestDelay == 0 {
		cfg.Fetcher.RequestDelay = 250 * time.Millisecond
	}
	if cfg.Fetcher.BurstSize == 0 {
		cfg.Fetcher.BurstSize = 50
	}
	if cfg.Fetcher.BatchPause == 0 {
		cfg.Fetcher.BatchPause = 2 * time.Second
	}
	if cfg.Fetcher.SubExchangeGap == 0 {
		cfg.Fetcher.SubExchangeGap = 100 * time.Millisecond
	}
	if cfg.Fetcher.BackoffMin == 0 {
		cfg.Fetcher.BackoffMin = time.Second
	}
	if cfg.Fetcher.BackoffMax == 0 {
		cfg.Fetcher.BackoffMax = 60 * time.Second
	}
	if cfg.Fetcher.MaxAttempts == 0 {
		cfg.Fetcher.MaxAttempts = 5
	}
	if cfg.Fetcher.MarkCacheTTL == 0 {
		cfg.Fetcher.MarkCacheTTL = 500 * time.Millisecond
	}

	if cfg.Tiers.CriticalDistancePct == 0 {
		cfg.Tiers.CriticalDistancePct = 0.125
	}
	if cfg.Tiers.HighDistancePct == 0 {
		cfg.Tiers.HighDistancePct = 0.25
	}
	if cfg.Tiers.MaxWatchPct == 0 {
		cfg.Tiers.MaxWatchPct = 5.0
	}
	if cfg.Tiers.CriticalRefresh == 0 {
		cfg.Tiers.CriticalRefresh = 500 * time.Millisecond
	}
	if cfg.Tiers.HighRefresh == 0 {
		cfg.Tiers.HighRefresh = 3 * time.Second
	}
	if cfg.Tiers.NormalRefresh == 0 {
		cfg.Tiers.NormalRefresh = 30 * time.Second
	}
	if cfg.Tiers.ApproachingRearmPct == 0 {
		cfg.Tiers.ApproachingRearmPct = 0.30
	}
	if cfg.Tiers.CriticalRearmPct == 0 {
		cfg.Tiers.CriticalRearmPct = 0.15
	}

	if cfg.Discovery.BaseIntervalSec == 0 {
		cfg.Discovery.BaseIntervalSec = 30
	}
	if cfg.Discovery.CriticalWeight == 0 {
		cfg.Discovery.CriticalWeight = 15
	}
	if cfg.Discovery.HighWeight == 0 {
		cfg.Discovery.HighWeight = 5
	}
	if cfg.Discovery.MinIntervalSec == 0 {
		cfg.Discovery.MinIntervalSec = 30
	}
	if cfg.Discovery.MaxIntervalSec == 0 {
		cfg.Discovery.MaxIntervalSec = 240
	}
	if cfg.Discovery.PageSize == 0 {
		cfg.Discovery.PageSize = 100
	}
	if cfg.Discovery.InfrequentNotionalUSD == 0 {
		cfg.Discovery.InfrequentNotionalUSD = 60_000
	}
	if cfg.Discovery.InfrequentRescan == 0 {
		cfg.Discovery.InfrequentRescan = 24 * time.Hour
	}
	if len(cfg.Discovery.CohortIDs) == 0 {
		cfg.Discovery.CohortIDs = []string{"kraken", "large_whale", "whale"}
	}
	if cfg.Discovery.MinAggregateValueUSD == 0 {
		cfg.Discovery.MinAggregateValueUSD = 300_000
	}
	if cfg.Discovery.LiqHistoryMinNotionalUSD == 0 {
		cfg.Discovery.LiqHistoryMinNotionalUSD = 100_000
	}

	if cfg.Summary.Time == "" {
		cfg.Summary.Time = "06:00"
	}
	if cfg.Summary.Timezone == "" {
		cfg.Summary.Timezone = "America/New_York"
	}

	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/hl-liq-watch.db"
	}
	if cfg.State.FlushInterval == 0 {
		cfg.State.FlushInterval = time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Tiers.CriticalDistancePct >= cfg.Tiers.HighDistancePct {
		return errors.New("tiers.critical_distance_pct must be < tiers.high_distance_pct")
	}
	if cfg.Tiers.HighDistancePct >= cfg.Tiers.MaxWatchPct {
		return errors.New("tiers.high_distance_pct must be < tiers.max_watch_pct")
	}
	if cfg.Discovery.MinIntervalSec > cfg.Discovery.MaxIntervalSec {
		return errors.New("discovery.min_interval_sec must be <= discovery.max_interval_sec")
	}
	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required when telegram.enabled is true")
	}
	if _, err := time.LoadLocation(cfg.Summary.Timezone); err != nil {
		return errors.New("summary.timezone is invalid: " + err.Error())
	}
	return nil
}

// Thresholds builds the notional threshold table from the loaded
// overrides.
func (cfg *Config) Thresholds() *NotionalThresholds {
	return newNotionalThresholds(cfg.ThresholdOverrides)
}
