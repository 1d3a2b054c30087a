package app

import (
	"sync"
	"time"
)

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker with the given period.
type TickerFunc func(d time.Duration) Ticker

// NewRealTicker wraps time.Ticker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// ManualTicker only ticks when Tick is called. It lets tests and
// simulations drive the exam clock deterministically.
type ManualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

// Func returns a TickerFunc that always hands out this ticker.
func (m *ManualTicker) Func() TickerFunc {
	return func(time.Duration) Ticker {
		m.mu.Lock()
		m.stopped = false
		m.mu.Unlock()
		return m
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

func (m *ManualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

// Tick delivers one tick and reports whether a receiver took it before the timeout.
func (m *ManualTicker) Tick(timeout time.Duration) bool {
	m.mu.Lock()
	stopped := m.stopped
	m.mu.Unlock()
	if stopped {
		return false
	}
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(timeout):
		return false
	}
}
