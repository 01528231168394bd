// Package control couples the DF mode flag to the mode output line and the polling loop.
package control

import (
	"fmt"
	"log"
	"sync"

	"github.com/sweeney/antenna-control/internal/gpio"
)

// Loop is the lifecycle surface of the polling loop.
type Loop interface {
	Start() bool
	Stop() error
	Running() bool
}

// ModeStore persists the DF mode flag.
type ModeStore interface {
	SaveMode(on bool) error
}

// Controller owns the DF mode flag.
type Controller struct {
	out   gpio.Writer
	loop  Loop
	store ModeStore

	mu   sync.Mutex
	mode bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore persists every accepted mode change to s.
func WithStore(s ModeStore) Option {
	return func(c *Controller) { c.store = s }
}

// New creates a controller with DF mode off.
func New(out gpio.Writer, loop Loop, opts ...Option) *Controller {
	c := &Controller{out: out, loop: loop}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetMode drives the mode output and starts the polling loop if it is not
// running. Clearing the mode does not stop the loop; only Stop does.
func (c *Controller) SetMode(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	value := 0
	if on {
		value = 1
	}
	if err := c.out.WriteOutput(gpio.LineMode, value); err != nil {
		return fmt.Errorf("set df mode: %w", err)
	}
	c.mode = on
	log.Printf("control: df_mode=%v", on)

	if c.store != nil {
		if err := c.store.SaveMode(on); err != nil {
			log.Printf("control: persist df_mode: %v", err)
		}
	}

	if !c.loop.Running() {
		c.loop.Start()
	}
	return nil
}

// Mode returns the current DF mode flag.
func (c *Controller) Mode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Start starts the polling loop. It reports whether a new loop was started.
func (c *Controller) Start() bool {
	return c.loop.Start()
}

// Stop stops the polling loop, waiting for the in-flight tick.
// A timeout is returned as an error wrapping poller.ErrStopTimeout.
func (c *Controller) Stop() error {
	if err := c.loop.Stop(); err != nil {
		return fmt.Errorf("stop polling: %w", err)
	}
	return nil
}

// Running reports whether the polling loop is scheduled.
func (c *Controller) Running() bool {
	return c.loop.Running()
}
