// Package config loads and watches the process configuration: logging,
// metrics, the market-data feed and the per-instrument quoting
// parameters. The YAML schema lives here; durations are millisecond
// integers and are mapped onto the engine's own types on the way out.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quote-engine-go/gateway"
	"quote-engine-go/infrastructure/logger"
	"quote-engine-go/quote"
)

// AppConfig is the top-level runtime configuration.
type AppConfig struct {
	Env         string             `yaml:"env"`
	Logger      logger.Config      `yaml:"logger"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Feed        FeedSettings       `yaml:"feed"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// FeedSettings is the YAML surface of the depth feed connection.
type FeedSettings struct {
	URL                string `yaml:"url"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms"`
	ReadTimeoutMs      int    `yaml:"read_timeout_ms"`
	ReconnectMinMs     int    `yaml:"reconnect_min_ms"`
	ReconnectMaxMs     int    `yaml:"reconnect_max_ms"`
}

// Gateway maps the settings onto the feed client config; unset timeouts
// keep their defaults.
func (f FeedSettings) Gateway() gateway.FeedConfig {
	cfg := gateway.DefaultFeedConfig()
	cfg.URL = f.URL
	if f.HandshakeTimeoutMs > 0 {
		cfg.HandshakeTimeout = time.Duration(f.HandshakeTimeoutMs) * time.Millisecond
	}
	if f.ReadTimeoutMs > 0 {
		cfg.ReadTimeout = time.Duration(f.ReadTimeoutMs) * time.Millisecond
	}
	if f.ReconnectMinMs > 0 {
		cfg.ReconnectMin = time.Duration(f.ReconnectMinMs) * time.Millisecond
	}
	if f.ReconnectMaxMs > 0 {
		cfg.ReconnectMax = time.Duration(f.ReconnectMaxMs) * time.Millisecond
	}
	return cfg
}

// InstrumentConfig is the YAML surface of one instrument's quoting
// parameters.
type InstrumentConfig struct {
	Symbol       string    `yaml:"symbol"`
	Qty          float64   `yaml:"qty"`
	Tiers        int       `yaml:"tiers"`
	VolTargets   []float64 `yaml:"vol_targets"`
	QtyFracs     []float64 `yaml:"qty_fracs"`
	MinSize      float64   `yaml:"min_size"`
	Tick         float64   `yaml:"tick"`
	ForceTick    float64   `yaml:"force_tick"`
	Markup       float64   `yaml:"markup"`
	SkewCoeff    float64   `yaml:"skew_coeff"`
	ResistCoeff  float64   `yaml:"resist_coeff"`
	MinSpreadBps float64   `yaml:"min_spread_bps"`
	CoolDownMs   int       `yaml:"cool_down_ms"`
	PosSoftLimit float64   `yaml:"pos_soft_limit"`
	Policy       string    `yaml:"policy"`
	SkipTopLevel bool      `yaml:"skip_top_level"`
}

// Quote maps the instrument settings onto the engine's parameter set.
func (ic InstrumentConfig) Quote() quote.Config {
	policy := quote.SidePolicy(ic.Policy)
	if ic.Policy == "" {
		policy = quote.PolicyFlipFlop
	}
	return quote.Config{
		Symbol:       ic.Symbol,
		Qty:          ic.Qty,
		Tiers:        ic.Tiers,
		VolTargets:   ic.VolTargets,
		QtyFracs:     ic.QtyFracs,
		MinSize:      ic.MinSize,
		Tick:         ic.Tick,
		ForceTick:    ic.ForceTick,
		Markup:       ic.Markup,
		SkewCoeff:    ic.SkewCoeff,
		ResistCoeff:  ic.ResistCoeff,
		MinSpreadBps: ic.MinSpreadBps,
		CoolDown:     time.Duration(ic.CoolDownMs) * time.Millisecond,
		PosSoftLimit: ic.PosSoftLimit,
		Policy:       policy,
		SkipTopLevel: ic.SkipTopLevel,
	}
}

// Symbols lists the configured instruments in config order.
func (c *AppConfig) Symbols() []string {
	out := make([]string, 0, len(c.Instruments))
	for i := range c.Instruments {
		out = append(out, c.Instruments[i].Symbol)
	}
	return out
}

// Instrument returns the settings for one symbol, nil when not
// configured.
func (c *AppConfig) Instrument(symbol string) *InstrumentConfig {
	for i := range c.Instruments {
		if c.Instruments[i].Symbol == symbol {
			return &c.Instruments[i]
		}
	}
	return nil
}

// Load reads YAML config from path and validates it.
func Load(path string) (AppConfig, error) {
	cfg := AppConfig{Logger: logger.DefaultConfig()}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deployment-specific
// fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("QE_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("QE_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present and every instrument's
// parameter set is usable on its own.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Feed.URL == "" {
		return errors.New("feed.url is required (or QE_FEED_URL)")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	if len(cfg.Instruments) == 0 {
		return errors.New("at least one instrument is required")
	}
	seen := make(map[string]bool, len(cfg.Instruments))
	for i := range cfg.Instruments {
		ic := &cfg.Instruments[i]
		if ic.Symbol == "" {
			return fmt.Errorf("instrument %d: symbol is required", i)
		}
		if seen[ic.Symbol] {
			return fmt.Errorf("instrument %s configured twice", ic.Symbol)
		}
		seen[ic.Symbol] = true
		qc := ic.Quote()
		if err := qc.Validate(); err != nil {
			return fmt.Errorf("instrument %s: %w", ic.Symbol, err)
		}
	}
	return nil
}
