package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"quote-engine-go/quote"
)

const validYAML = `
env: dev
logger:
  level: info
  outputs: [stdout]
  format: console
metrics:
  enabled: true
  addr: :9102
feed:
  url: ws://localhost:8080/depth
  read_timeout_ms: 15000
instruments:
  - symbol: BTCUSD
    qty: 2.0
    tiers: 2
    vol_targets: [5, 20]
    qty_fracs: [0.4, 0.6]
    min_size: 0.1
    tick: 0.5
    markup: 1.0
    skew_coeff: 0.2
    cool_down_ms: 150
    pos_soft_limit: 6
    policy: softlimit
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Metrics.Addr != ":9102" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if got := cfg.Symbols(); len(got) != 1 || got[0] != "BTCUSD" {
		t.Fatalf("symbols = %v", got)
	}

	fc := cfg.Feed.Gateway()
	if fc.URL != "ws://localhost:8080/depth" {
		t.Errorf("feed url = %q", fc.URL)
	}
	if fc.ReadTimeout != 15*time.Second {
		t.Errorf("read timeout = %s, want 15s", fc.ReadTimeout)
	}
	if fc.HandshakeTimeout == 0 {
		t.Error("unset handshake timeout should keep its default")
	}

	ic := cfg.Instrument("BTCUSD")
	if ic == nil {
		t.Fatal("instrument lookup failed")
	}
	qc := ic.Quote()
	if qc.CoolDown != 150*time.Millisecond {
		t.Errorf("cool down = %s, want 150ms", qc.CoolDown)
	}
	if qc.Policy != quote.PolicySoftLimit {
		t.Errorf("policy = %q", qc.Policy)
	}
	if cfg.Instrument("OTHER") != nil {
		t.Error("unknown symbol should return nil")
	}
}

func TestLoadDefaultsPolicy(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `
env: dev
feed:
  url: ws://localhost:8080/depth
instruments:
  - symbol: ETHUSD
    qty: 1.0
    tiers: 1
    vol_targets: [10]
    qty_fracs: [1.0]
    min_size: 0.1
    tick: 0.01
    pos_soft_limit: 5
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Instruments[0].Quote().Policy; got != quote.PolicyFlipFlop {
		t.Errorf("default policy = %q, want flipflop", got)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("QE_FEED_URL", "ws://prod-feed:9000/depth")
	t.Setenv("QE_METRICS_ADDR", ":9200")

	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Feed.URL != "ws://prod-feed:9000/depth" {
		t.Errorf("feed url override not applied: %q", cfg.Feed.URL)
	}
	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("metrics addr override not applied: %q", cfg.Metrics.Addr)
	}
}

func TestValidateRejects(t *testing.T) {
	if err := Validate(AppConfig{}); err == nil {
		t.Error("empty config accepted")
	}

	base := func() AppConfig {
		cfg, err := Load(writeTempConfig(t, validYAML))
		if err != nil {
			t.Fatalf("base config: %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Feed.URL = ""
	if err := Validate(cfg); err == nil {
		t.Error("missing feed url accepted")
	}

	cfg = base()
	cfg.Metrics = MetricsConfig{Enabled: true}
	if err := Validate(cfg); err == nil {
		t.Error("enabled metrics without addr accepted")
	}

	cfg = base()
	cfg.Instruments = append(cfg.Instruments, cfg.Instruments[0])
	if err := Validate(cfg); err == nil {
		t.Error("duplicate symbol accepted")
	}

	cfg = base()
	cfg.Instruments[0].QtyFracs = []float64{0.4, 0.4}
	if err := Validate(cfg); err == nil {
		t.Error("instrument with broken qty_fracs accepted")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeTempConfig(t, "env: [unclosed")); err == nil {
		t.Error("broken yaml accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
