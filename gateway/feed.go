package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quote-engine-go/market"
)

// FeedConfig 行情连接配置
type FeedConfig struct {
	URL              string        `yaml:"url"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	ReconnectMin     time.Duration `yaml:"reconnect_min"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
}

func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      30 * time.Second,
		ReconnectMin:     500 * time.Millisecond,
		ReconnectMax:     30 * time.Second,
	}
}

// depthFrame is the wire format of one depth message: a snapshot or a
// delta of [price, qty] pairs per side.
type depthFrame struct {
	Symbol string       `json:"symbol"`
	Type   string       `json:"type"` // "snapshot" or "delta"
	TsMs   int64        `json:"ts"`
	Bids   [][2]float64 `json:"bids"`
	Asks   [][2]float64 `json:"asks"`
}

// FeedClient 订阅深度行情并维护各 symbol 的订单簿。
// Updates are applied to the book before OnUpdate fires, so the
// callback always observes the post-update state.
type FeedClient struct {
	cfg    FeedConfig
	log    *zap.Logger
	dialer *websocket.Dialer
	books  map[string]*market.Book

	// OnUpdate runs on the read goroutine, once per applied frame.
	OnUpdate func(symbol string, exchTime, recvTime time.Time)
	// OnConnect / OnDisconnect report connection state changes.
	OnConnect    func()
	OnDisconnect func(err error)
}

func NewFeedClient(cfg FeedConfig, symbols []string, log *zap.Logger) *FeedClient {
	books := make(map[string]*market.Book, len(symbols))
	for _, s := range symbols {
		books[s] = market.NewBook()
	}
	return &FeedClient{
		cfg: cfg,
		log: log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		books: books,
	}
}

// Book returns the live book for one symbol, nil when not subscribed.
func (f *FeedClient) Book(symbol string) *market.Book {
	return f.books[symbol]
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff on any connection failure.
func (f *FeedClient) Run(ctx context.Context) error {
	backoff := f.cfg.ReconnectMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.readLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.OnDisconnect != nil {
			f.OnDisconnect(err)
		}
		f.log.Warn("feed disconnected, reconnecting",
			zap.String("url", f.cfg.URL),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > f.cfg.ReconnectMax {
			backoff = f.cfg.ReconnectMax
		}
	}
}

func (f *FeedClient) readLoop(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	defer conn.Close()

	if f.OnConnect != nil {
		f.OnConnect()
	}
	f.log.Info("feed connected", zap.String("url", f.cfg.URL))

	for {
		if f.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := f.handle(message); err != nil {
			// 解析失败只记录，不断开连接
			f.log.Warn("bad feed frame", zap.Error(err))
		}
	}
}

func (f *FeedClient) handle(message []byte) error {
	recv := time.Now()

	var frame depthFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return fmt.Errorf("decode depth frame: %w", err)
	}
	book, ok := f.books[frame.Symbol]
	if !ok {
		// Frames for symbols we did not subscribe are dropped silently.
		return nil
	}

	switch frame.Type {
	case "snapshot":
		book.ApplySnapshot(toLevels(frame.Bids), toLevels(frame.Asks))
	case "delta":
		for _, lv := range frame.Bids {
			book.ApplyDelta(market.Bid, lv[0], lv[1])
		}
		for _, lv := range frame.Asks {
			book.ApplyDelta(market.Ask, lv[0], lv[1])
		}
	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}

	if f.OnUpdate != nil {
		f.OnUpdate(frame.Symbol, time.UnixMilli(frame.TsMs), recv)
	}
	return nil
}

func toLevels(raw [][2]float64) []market.Level {
	out := make([]market.Level, 0, len(raw))
	for _, lv := range raw {
		if lv[1] <= 0 {
			continue
		}
		out = append(out, market.Level{Price: lv[0], Qty: lv[1]})
	}
	return out
}
