// Package progress provides the approximated progress ramp shown while a backend call is outstanding.
//
// The backend reports neither upload nor indexing progress, so a Ramp advances a percentage by a
// fixed step on a fixed interval and stops at a cap below 100. Reaching 100 is left to the owner,
// which does so only when the awaited call actually completes.
package progress

import (
	"sync"
	"time"
)

// MaxCap is the highest value a ramp may reach on its own.
const MaxCap = 99

// Config describes a ramp.
type Config struct {
	Interval time.Duration `yaml:"interval"`
	Step     int           `yaml:"step"`
	Cap      int           `yaml:"cap"`
}

// DefaultConfig advances 5% every 300ms up to 95%.
func DefaultConfig() Config {
	return Config{Interval: 300 * time.Millisecond, Step: 5, Cap: 95}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Step <= 0 {
		c.Step = d.Step
	}
	if c.Cap <= 0 {
		c.Cap = d.Cap
	}
	if c.Cap > MaxCap {
		c.Cap = MaxCap
	}
	return c
}

// TickSource returns a tick channel for the interval and a function that releases it.
type TickSource func(interval time.Duration) (<-chan time.Time, func())

func realTicks(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// Option configures a Ramp.
type Option func(*Ramp)

// WithTickSource replaces the wall-clock ticker.
func WithTickSource(src TickSource) Option {
	return func(r *Ramp) { r.ticks = src }
}

// Ramp is a cancelable repeating task that raises a percentage until its cap or until stopped.
type Ramp struct {
	cfg    Config
	onTick func(value int)
	ticks  TickSource

	mu    sync.Mutex
	value int

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start begins a ramp at 0. onTick is called from the ramp goroutine with each new value.
func Start(cfg Config, onTick func(value int), opts ...Option) *Ramp {
	r := &Ramp{
		cfg:    cfg.normalized(),
		onTick: onTick,
		ticks:  realTicks,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r
}

func (r *Ramp) run() {
	defer close(r.done)
	ch, release := r.ticks(r.cfg.Interval)
	defer release()
	for {
		select {
		case <-r.stop:
			return
		case <-ch:
			// A stop that raced with this tick wins.
			select {
			case <-r.stop:
				return
			default:
			}
			next, capped := r.advance()
			if r.onTick != nil {
				r.onTick(next)
			}
			if capped {
				return
			}
		}
	}
}

func (r *Ramp) advance() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value += r.cfg.Step
	if r.value >= r.cfg.Cap {
		r.value = r.cfg.Cap
		return r.value, true
	}
	return r.value, false
}

// Value returns the current value.
func (r *Ramp) Value() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Stop halts the ramp and waits for its goroutine to exit, so onTick is never called after Stop
// returns. It must not be called from inside onTick. Stop is idempotent and returns the last value.
func (r *Ramp) Stop() int {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
	return r.Value()
}

// Done is closed when the ramp goroutine has exited, either stopped or capped.
func (r *Ramp) Done() <-chan struct{} {
	return r.done
}
