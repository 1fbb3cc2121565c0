package gateway

import (
	"sync"
	"time"

	"quote-engine-go/risk"
)

// RateLimiter 控制请求速率，避免触发交易所限流。
type RateLimiter interface {
	Wait()
	TryAcquire() bool
}

// TokenBucketLimiter 是一个简单的令牌桶实现。
type TokenBucketLimiter struct {
	rate   float64
	burst  int
	tokens float64
	last   time.Time
	clock  risk.Clock
	mu     sync.Mutex
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	return NewTokenBucketLimiterWithClock(rate, burst, risk.Wall)
}

// NewTokenBucketLimiterWithClock 注入时钟，测试用。
func NewTokenBucketLimiterWithClock(rate float64, burst int, clock risk.Clock) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		last:   clock.Now(),
		clock:  clock,
	}
}

func (l *TokenBucketLimiter) refill(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	l.last = now
	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
}

// TryAcquire 无阻塞获取一个令牌。
func (l *TokenBucketLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill(l.clock.Now())
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Wait 阻塞直到获取一个令牌。
func (l *TokenBucketLimiter) Wait() {
	l.mu.Lock()
	l.refill(l.clock.Now())
	if l.tokens >= 1 {
		l.tokens--
		l.mu.Unlock()
		return
	}
	sleep := time.Duration((1-l.tokens)/l.rate*float64(time.Second)) + time.Millisecond
	l.tokens = 0
	l.mu.Unlock()
	time.Sleep(sleep)
}
