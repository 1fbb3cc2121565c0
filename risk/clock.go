package risk

import "time"

// Clock 抽象时间便于测试。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Wall is the real clock.
var Wall Clock = realClock{}

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	T time.Time
}

func (f *FakeClock) Now() time.Time { return f.T }

// Advance moves the fake clock forward.
func (f *FakeClock) Advance(d time.Duration) { f.T = f.T.Add(d) }
