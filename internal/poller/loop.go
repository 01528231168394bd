// Package poller runs the switch pattern sampling loop.
package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sweeney/antenna-control/internal/pattern"
)

// Default sampling period and line release timeout.
const (
	DefaultPeriod      = 100 * time.Millisecond
	DefaultStopTimeout = 2 * time.Second
)

// ErrStopTimeout is returned by Stop when the in-flight tick does not finish in time.
var ErrStopTimeout = errors.New("poller: loop did not terminate before stop timeout")

// Sampler is the pattern source polled on every tick.
type Sampler interface {
	Sample() (pattern.Code, bool, error)
}

// Sink receives pattern changes in tick order.
type Sink interface {
	PublishPattern(change pattern.Change) error
}

// State is the run state of the loop.
type State string

const (
	StateStopped  State = "STOPPED"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING" // stop timed out, goroutine still exiting
)

// Config is the loop timing.
type Config struct {
	Period      time.Duration
	StopTimeout time.Duration
}

// Loop polls a Sampler at a fixed period and forwards changes to a Sink.
// At most one polling goroutine exists per Loop.
type Loop struct {
	cfg     Config
	sampler Sampler
	sink    Sink
	now     func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopping bool
}

// New creates a stopped loop. Zero timings take the defaults.
func New(cfg Config, sampler Sampler, sink Sink) (*Loop, error) {
	if sampler == nil {
		return nil, errors.New("poller: sampler required")
	}
	if sink == nil {
		return nil, errors.New("poller: sink required")
	}
	if cfg.Period < 0 || cfg.StopTimeout < 0 {
		return nil, errors.New("poller: timings must not be negative")
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Loop{
		cfg:     cfg,
		sampler: sampler,
		sink:    sink,
		now:     time.Now,
	}, nil
}

// Start schedules the loop. It reports whether a new goroutine was started;
// starting a running loop is a no-op.
func (l *Loop) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done != nil {
		if !l.stopping || !closed(l.done) {
			return false
		}
		// The goroutine left behind by a timed-out stop has exited.
		l.clear()
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)

	log.Printf("poller: started (period=%v)", l.cfg.Period)
	return true
}

// Stop cancels scheduling and waits up to the stop timeout for the in-flight
// tick to finish. Stopping a stopped loop is a no-op. On timeout it returns
// ErrStopTimeout and the loop stays in StateStopping until a later Stop or
// Start observes the goroutine has exited.
func (l *Loop) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done == nil {
		return nil
	}
	l.cancel()

	timer := time.NewTimer(l.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-l.done:
		l.clear()
		log.Printf("poller: stopped")
		return nil
	case <-timer.C:
		l.stopping = true
		return ErrStopTimeout
	}
}

// State returns the current run state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.done == nil:
		return StateStopped
	case l.stopping:
		return StateStopping
	}
	return StateRunning
}

// Running reports whether a polling goroutine is scheduled.
func (l *Loop) Running() bool {
	return l.State() == StateRunning
}

// clear drops the goroutine handle. Caller holds l.mu.
func (l *Loop) clear() {
	l.cancel = nil
	l.done = nil
	l.stopping = false
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// A change is followed by an immediate re-sample; otherwise idle one period.
		wait := l.cfg.Period
		if l.tick() {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// tick samples once and publishes on change. It reports whether the pattern changed.
func (l *Loop) tick() bool {
	code, changed, err := l.sampler.Sample()
	if err != nil {
		log.Printf("poller: sample error: %v", err)
		return false
	}
	if !changed {
		return false
	}

	log.Printf("poller: pattern=%d antenna=%q", code, code.Pair())
	change := pattern.Change{Timestamp: l.now(), Code: code}
	if err := l.sink.PublishPattern(change); err != nil {
		log.Printf("poller: publish error: %v", err)
		// Don't stop polling on publish failure
	}
	return true
}

func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
