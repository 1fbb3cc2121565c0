package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听配置文件并在变化时重新加载。
// A reload that fails to parse or validate is logged and dropped; the
// running configuration is never replaced with a broken one.
type Watcher struct {
	path     string
	cooldown time.Duration
	log      *zap.Logger
	fw       *fsnotify.Watcher

	// OnReload receives every successfully validated configuration. The
	// callback decides what can be applied live; a returned error is
	// logged, not fatal.
	OnReload func(AppConfig) error

	lastReload time.Time
}

// NewWatcher creates a watcher for one config file. A cooldown of zero
// defaults to 2s; editors tend to fire several events per save.
func NewWatcher(path string, cooldown time.Duration, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}
	if cooldown <= 0 {
		cooldown = 2 * time.Second
	}
	return &Watcher{path: path, cooldown: cooldown, log: log, fw: fw}, nil
}

// Run blocks until ctx is cancelled, reloading on write events.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	// 冷却时间内的事件合并为一次重载
	if time.Since(w.lastReload) < w.cooldown {
		return
	}
	w.lastReload = time.Now()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.log.Error("config reload rejected",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}
	w.log.Info("config reloaded", zap.String("path", w.path))
	if w.OnReload != nil {
		if err := w.OnReload(cfg); err != nil {
			w.log.Error("config apply failed", zap.Error(err))
		}
	}
}
