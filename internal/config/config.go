package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds server configuration, loaded from a file with environment
// overrides.
type Config struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	IndexerURL   string `mapstructure:"indexer_url"`
	IndexerWSURL string `mapstructure:"indexer_ws_url"`

	UseMemoryStorage bool   `mapstructure:"use_memory_storage"`
	PostgresURL      string `mapstructure:"postgres_url"`
	ClickHouseDSN    string `mapstructure:"clickhouse_dsn"`

	EventPollSeconds    int `mapstructure:"event_poll_seconds"`
	SnapshotPollSeconds int `mapstructure:"snapshot_poll_seconds"`
	SnapshotMaxLagSecs  int `mapstructure:"snapshot_max_lag_seconds"`

	ShowPriceChanges        bool     `mapstructure:"show_price_changes"`
	UseHistoricalBlndPrices bool     `mapstructure:"use_historical_blnd_prices"`
	PeggedAssets            []string `mapstructure:"pegged_assets"`

	DebugLogging bool `mapstructure:"debug_logging"`
}

const (
	DefaultListenAddr        = ":8080"
	DefaultEventPollSeconds  = 30
	DefaultSnapshotPollSecs  = 15
	DefaultSnapshotMaxLagSec = 30
)

// LoadConfig reads the config file at path and applies defaults and
// BLEND_PNL_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"listen_addr":                DefaultListenAddr,
		"event_poll_seconds":         DefaultEventPollSeconds,
		"snapshot_poll_seconds":      DefaultSnapshotPollSecs,
		"snapshot_max_lag_seconds":   DefaultSnapshotMaxLagSec,
		"use_memory_storage":         false,
		"show_price_changes":         false,
		"use_historical_blnd_prices": true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.IndexerURL == "" {
		return errors.New("missing indexer_url in configuration")
	}
	if err := validateURL(cfg.IndexerURL, "http"); err != nil {
		return errors.New("invalid indexer URL protocol")
	}
	if cfg.IndexerWSURL != "" {
		if err := validateURL(cfg.IndexerWSURL, "ws"); err != nil {
			return errors.New("invalid indexer WebSocket URL protocol")
		}
	}
	// ClickHouse is optional: without a DSN the price history lives in
	// PostgreSQL next to the event ledger.
	if !cfg.UseMemoryStorage && cfg.PostgresURL == "" {
		return errors.New("missing postgres_url in configuration")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.EventPollSeconds <= 0 {
		return errors.New("invalid event_poll_seconds")
	}
	if cfg.SnapshotPollSeconds <= 0 {
		return errors.New("invalid snapshot_poll_seconds")
	}
	if cfg.SnapshotMaxLagSecs <= 0 {
		return errors.New("invalid snapshot_max_lag_seconds")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("BLEND_PNL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envURL := v.GetString("INDEXER_URL"); envURL != "" {
		cfg.IndexerURL = envURL
	}
	if envPG := v.GetString("POSTGRES_URL"); envPG != "" {
		cfg.PostgresURL = envPG
	}
	if envCH := v.GetString("CLICKHOUSE_DSN"); envCH != "" {
		cfg.ClickHouseDSN = envCH
	}

	if envPegged := v.GetString("PEGGED_ASSETS"); envPegged != "" {
		parts := strings.Split(envPegged, ",")
		var clean []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				clean = append(clean, trimmed)
			}
		}
		if len(clean) > 0 {
			cfg.PeggedAssets = clean
		}
	}
	return nil
}
