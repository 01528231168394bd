package mqtt

import (
	"sync"

	"github.com/sweeney/antenna-control/internal/pattern"
)

// FakePublisher records published events for test assertions.
// It is safe for concurrent use; the polling loop publishes from its own goroutine.
type FakePublisher struct {
	mu sync.Mutex

	patterns     []pattern.Change
	payloads     [][]byte
	modes        []ModeEvent
	systemEvents []SystemEvent

	publishErr  error
	closed      bool
	connected   bool
	modeHandler func(on bool)
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishPattern records the change.
func (f *FakePublisher) PublishPattern(change pattern.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}

	payload, err := FormatPayload(change)
	if err != nil {
		return err
	}
	f.patterns = append(f.patterns, change)
	f.payloads = append(f.payloads, payload)
	return nil
}

// PublishMode records the mode event.
func (f *FakePublisher) PublishMode(event ModeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.modes = append(f.modes, event)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.systemEvents = append(f.systemEvents, event)
	return nil
}

// SubscribeMode stores the handler; Command invokes it.
func (f *FakePublisher) SubscribeMode(handler func(on bool)) error {
	f.mu.Lock()
	f.modeHandler = handler
	f.mu.Unlock()
	return nil
}

// Command simulates a DF mode command arriving from the broker.
func (f *FakePublisher) Command(payload []byte) error {
	on, err := ParseModeCommand(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	handler := f.modeHandler
	f.mu.Unlock()
	if handler != nil {
		handler(on)
	}
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// SetConnected controls the return value of IsConnected.
func (f *FakePublisher) SetConnected(c bool) {
	f.mu.Lock()
	f.connected = c
	f.mu.Unlock()
}

// SetPublishError makes every publish fail with err (nil clears it).
func (f *FakePublisher) SetPublishError(err error) {
	f.mu.Lock()
	f.publishErr = err
	f.mu.Unlock()
}

// Patterns returns a copy of the recorded pattern changes.
func (f *FakePublisher) Patterns() []pattern.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pattern.Change(nil), f.patterns...)
}

// Payloads returns a copy of the recorded pattern payloads.
func (f *FakePublisher) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

// Modes returns a copy of the recorded mode events.
func (f *FakePublisher) Modes() []ModeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ModeEvent(nil), f.modes...)
}

// SystemEvents returns a copy of the recorded system events.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
