// Package config loads adminlog settings from an optional YAML file and
// ADMINLOG_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/opsorch/adminlog/logger"
	"github.com/opsorch/adminlog/logquery"
	"github.com/opsorch/adminlog/schema"
)

// EnvPrefix prefixes every environment override, e.g. ADMINLOG_QUERY_BATCH_SIZE.
const EnvPrefix = "ADMINLOG"

// Config is the full runtime configuration.
type Config struct {
	Addr        string `mapstructure:"addr"`
	CORSOrigin  string `mapstructure:"cors_origin"`
	BearerToken string `mapstructure:"bearer_token"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	Log     logger.Config `mapstructure:"log"`
	Query   QueryConfig   `mapstructure:"query"`
	History HistoryConfig `mapstructure:"history"`

	LogProvider     ProviderConfig `mapstructure:"log_provider"`
	VersionProvider ProviderConfig `mapstructure:"version_provider"`
	VersionCacheTTL time.Duration  `mapstructure:"version_cache_ttl"`
}

// QueryConfig holds the fixed descriptor policy.
type QueryConfig struct {
	BatchSize      int             `mapstructure:"batch_size"`
	MinSeverity    schema.Severity `mapstructure:"min_severity"`
	IncludeAppLogs bool            `mapstructure:"include_app_logs"`
}

// HistoryConfig bounds backward history walks.
type HistoryConfig struct {
	Window         time.Duration `mapstructure:"window"`
	MaxPages       int           `mapstructure:"max_pages"`
	PagesPerSecond float64       `mapstructure:"pages_per_second"`
}

// ProviderConfig selects an adapter by registered name or local plugin path.
// ConfigJSON lets a single environment variable carry the adapter settings.
type ProviderConfig struct {
	Name       string         `mapstructure:"name"`
	Plugin     string         `mapstructure:"plugin"`
	Config     map[string]any `mapstructure:"config"`
	ConfigJSON string         `mapstructure:"config_json"`
}

// Configured reports whether any adapter was selected.
func (p ProviderConfig) Configured() bool {
	return p.Name != "" || p.Plugin != ""
}

// Settings merges Config with the decoded ConfigJSON; JSON keys win.
func (p ProviderConfig) Settings() (map[string]any, error) {
	out := make(map[string]any, len(p.Config))
	for k, v := range p.Config {
		out[k] = v
	}
	raw := strings.TrimSpace(p.ConfigJSON)
	if raw == "" {
		return out, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("invalid provider config_json: %w", err)
	}
	for k, v := range decoded {
		out[k] = v
	}
	return out, nil
}

// Policy converts the query section to a descriptor policy.
func (c Config) Policy() logquery.Policy {
	return logquery.Policy{
		BatchSize:      c.Query.BatchSize,
		MinSeverity:    c.Query.MinSeverity,
		IncludeAppLogs: c.Query.IncludeAppLogs,
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls_cert_file and tls_key_file must be set together"))
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.History.Window.Milliseconds() <= 0 {
		errs = append(errs, fmt.Errorf("history.window must be at least 1ms, got %s", c.History.Window))
	}
	if c.History.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("history.max_pages must not be negative, got %d", c.History.MaxPages))
	}
	if c.History.PagesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("history.pages_per_second must not be negative, got %v", c.History.PagesPerSecond))
	}
	if c.VersionCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("version_cache_ttl must not be negative, got %s", c.VersionCacheTTL))
	}
	for name, pc := range map[string]ProviderConfig{"log_provider": c.LogProvider, "version_provider": c.VersionProvider} {
		if _, err := pc.Settings(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Default returns the built-in settings, before any file or environment override.
func Default() Config {
	return Config{
		Addr:       ":8080",
		CORSOrigin: "*",
		Log:        logger.Config{Level: "info", Format: "text"},
		Query: QueryConfig{
			BatchSize:      logquery.DefaultBatchSize,
			MinSeverity:    schema.SeverityInfo,
			IncludeAppLogs: true,
		},
		History:         HistoryConfig{Window: time.Hour, MaxPages: 24},
		VersionCacheTTL: time.Minute,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("cors_origin", d.CORSOrigin)
	v.SetDefault("bearer_token", "")
	v.SetDefault("tls_cert_file", "")
	v.SetDefault("tls_key_file", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.add_source", d.Log.AddSource)

	v.SetDefault("query.batch_size", d.Query.BatchSize)
	v.SetDefault("query.min_severity", d.Query.MinSeverity.String())
	v.SetDefault("query.include_app_logs", d.Query.IncludeAppLogs)

	v.SetDefault("history.window", d.History.Window)
	v.SetDefault("history.max_pages", d.History.MaxPages)
	v.SetDefault("history.pages_per_second", d.History.PagesPerSecond)

	for _, p := range []string{"log_provider", "version_provider"} {
		v.SetDefault(p+".name", "")
		v.SetDefault(p+".plugin", "")
		v.SetDefault(p+".config_json", "")
	}
	v.SetDefault("version_cache_ttl", d.VersionCacheTTL)
}

// Load reads path (if non-empty), applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LogProvider.Name = strings.ToLower(strings.TrimSpace(cfg.LogProvider.Name))
	cfg.VersionProvider.Name = strings.ToLower(strings.TrimSpace(cfg.VersionProvider.Name))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
