package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"quote-engine-go/config"
	"quote-engine-go/engine"
	"quote-engine-go/gateway"
	"quote-engine-go/infrastructure/logger"
	"quote-engine-go/infrastructure/monitor"
	"quote-engine-go/order"
	"quote-engine-go/risk"
)

func main() {
	cfgPath := flag.String("config", "configs/quoter.yaml", "配置文件路径")
	paper := flag.Bool("paper", true, "纸面交易：使用进程内模拟撮合")
	flushRate := flag.Float64("flushRate", 20, "订单批量下发限流：每秒令牌数")
	flushBurst := flag.Int("flushBurst", 40, "订单批量下发限流：最大突发令牌数")
	reloadCooldown := flag.Duration("reloadCooldown", 5*time.Second, "配置热更新冷却时间")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if !*paper {
		log.Fatalf("仅支持 -paper 模式，真实交易所接入不在本进程内")
	}

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	var mon *monitor.Monitor
	if cfg.Metrics.Enabled {
		mon = monitor.New(monitor.DefaultConfig())
		srv := monitor.Serve(mon, cfg.Metrics.Addr)
		defer srv.Close()
		lg.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sig risk.Switch
	feed := gateway.NewFeedClient(cfg.Feed.Gateway(), cfg.Symbols(), lg.Named("feed").Logger)

	// 每个 symbol 一个独立的报价循环和模拟连接器。
	// All loops run on the feed's read goroutine; mu serializes the
	// config watcher's hot reloads against it.
	var mu sync.Mutex
	loops := make(map[string]*engine.Loop, len(cfg.Instruments))
	for i := range cfg.Instruments {
		qc := cfg.Instruments[i].Quote()
		conn := gateway.NewSimConnector(
			lg.Named("sim").Logger,
			gateway.NewTokenBucketLimiter(*flushRate, *flushBurst),
		)
		l, err := engine.New(qc, feed.Book(qc.Symbol), conn, &sig, lg.Named("engine").Logger, mon)
		if err != nil {
			log.Fatalf("初始化 %s 报价引擎失败: %v", qc.Symbol, err)
		}
		conn.OnCancelled = func(id uint64) {
			l.OnCancelled(id, engine.Timestamps{Strat: time.Now()})
		}
		loops[qc.Symbol] = l
	}

	feed.OnUpdate = func(symbol string, exch, recv time.Time) {
		l, ok := loops[symbol]
		if !ok {
			return
		}
		mu.Lock()
		err := l.OnBookUpdate(engine.Timestamps{Exch: exch, Recv: recv, Strat: time.Now()})
		mu.Unlock()
		if err != nil {
			lg.Error("quote cycle aborted",
				zap.String("symbol", symbol),
				zap.Error(err))
			if errors.Is(err, order.ErrRunAbort) {
				stop()
			}
		}
	}
	if mon != nil {
		feed.OnConnect = mon.RecordWSConnection
		feed.OnDisconnect = func(error) { mon.RecordWSDisconnect() }
	}

	watcher, err := config.NewWatcher(*cfgPath, *reloadCooldown, lg.Named("config").Logger)
	if err != nil {
		log.Fatalf("初始化配置监听失败: %v", err)
	}
	watcher.OnReload = func(nc config.AppConfig) error {
		mu.Lock()
		defer mu.Unlock()
		var firstErr error
		for i := range nc.Instruments {
			l, ok := loops[nc.Instruments[i].Symbol]
			if !ok {
				continue
			}
			if err := l.ApplyConfig(nc.Instruments[i].Quote()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	go func() { _ = watcher.Run(ctx) }()

	feedDone := make(chan error, 1)
	go func() { feedDone <- feed.Run(ctx) }()

	// systemd 集成：就绪通知与看门狗心跳
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			tick := time.NewTicker(interval / 2)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-tick.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		}()
	}

	lg.Info("quoter started",
		zap.String("env", cfg.Env),
		zap.Strings("symbols", cfg.Symbols()),
		zap.String("feed", cfg.Feed.URL))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	lg.Info("shutting down, cancelling all quotes")

	mu.Lock()
	for symbol, l := range loops {
		if err := l.Stop(); err != nil {
			lg.Error("stop failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	mu.Unlock()
	<-feedDone
	lg.Info("quoter stopped")
}
