package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the simulation cadence.
const DefaultInterval = 30 * time.Second

// TickSource starts a periodic tick channel and returns it with a stop
// function. Tests substitute a channel they drive by hand.
type TickSource func(d time.Duration) (<-chan time.Time, func())

// NewTicker is the TickSource backed by time.Ticker.
func NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	Interval time.Duration
	// Tick is invoked once per period on the loop goroutine.
	Tick func(time.Time)
	// OnFault is called with the recovered value when Tick panics.
	OnFault func(err error)
	Source  TickSource
	Logger  *zap.Logger
}

// Loop runs Tick periodically until stopped. Start and Stop may be called
// from any goroutine and any number of times.
type Loop struct {
	cfg LoopConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoop creates a stopped loop.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Source == nil {
		cfg.Source = NewTicker
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Loop{cfg: cfg}
}

// Start begins ticking on a fresh interval, so the first tick fires one
// full period from now. It is a no-op if the loop is already running.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticks, stopTicks := l.cfg.Source(l.cfg.Interval)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go l.run(ctx, ticks, stopTicks, done)
	l.cfg.Logger.Info("simulation started", zap.Duration("interval", l.cfg.Interval))
}

// Stop cancels the loop and waits for the loop goroutine to exit. No tick
// runs after Stop returns.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.cfg.Logger.Info("simulation stopped")
}

// Running reports whether the loop is started.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Loop) run(ctx context.Context, ticks <-chan time.Time, stopTicks func(), done chan struct{}) {
	defer close(done)
	defer stopTicks()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticks:
			// A tick that raced with cancellation is dropped.
			if ctx.Err() != nil {
				return
			}
			l.safeTick(t)
		}
	}
}

func (l *Loop) safeTick(t time.Time) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("simulation tick panicked: %v", r)
			l.cfg.Logger.Error("tick fault", zap.Error(err))
			if l.cfg.OnFault != nil {
				l.cfg.OnFault(err)
			}
		}
	}()
	l.cfg.Tick(t)
}
