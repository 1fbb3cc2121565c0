package config

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	w, err := NewWatcher(path, 10*time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	reloaded := make(chan AppConfig, 1)
	w.OnReload = func(cfg AppConfig) error {
		select {
		case reloaded <- cfg:
		default:
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Env != "dev" {
			t.Errorf("reloaded env = %q", cfg.Env)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within 3s of the write")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}

func TestWatcherDropsBrokenRewrite(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	w, err := NewWatcher(path, time.Millisecond, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	called := make(chan struct{}, 1)
	w.OnReload = func(AppConfig) error {
		select {
		case called <- struct{}{}:
		default:
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	if err := os.WriteFile(path, []byte("env: [unclosed"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-called:
		t.Fatal("broken config must not reach the apply callback")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherMissingFile(t *testing.T) {
	if _, err := NewWatcher("/nonexistent/cfg.yaml", time.Second, zap.NewNop()); err == nil {
		t.Error("watching a missing file should fail")
	}
}
