package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// FakeSampler is a test double that returns scripted pattern line values.
// It is safe for concurrent use.
type FakeSampler struct {
	mu sync.Mutex

	// samples contains scripted pattern readings. Reading LinePattern0
	// advances to the next sample; once exhausted the last sample repeats.
	samples []Sample
	index   int
	started bool

	// mode is the last value written to LineMode.
	mode int

	writes  []Write
	reads   int
	closed  bool
	readErr error

	// onRead, if set, is called (without the lock held) before every read.
	onRead func(Line)
}

// Sample represents a single reading of the three pattern lines.
type Sample struct {
	L0, L1, L2 int
}

// Write records a single WriteOutput call.
type Write struct {
	Line  Line
	Value int
}

// NewFakeSampler creates a FakeSampler with the given samples.
func NewFakeSampler(samples ...Sample) *FakeSampler {
	return &FakeSampler{samples: samples}
}

// ReadInput returns the scripted value for the line.
func (f *FakeSampler) ReadInput(l Line) (int, error) {
	f.mu.Lock()
	hook := f.onRead
	f.mu.Unlock()
	if hook != nil {
		hook(l)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.readErr != nil {
		return 0, f.readErr
	}
	if l == LineMode {
		return f.mode, nil
	}
	if len(f.samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	if l == LinePattern0 {
		if f.started && f.index < len(f.samples)-1 {
			f.index++
		}
		f.started = true
	}
	s := f.samples[f.index]
	switch l {
	case LinePattern0:
		return s.L0, nil
	case LinePattern1:
		return s.L1, nil
	case LinePattern2:
		return s.L2, nil
	}
	return 0, fmt.Errorf("read %s: unknown line", l)
}

// WriteOutput records the write.
func (f *FakeSampler) WriteOutput(l Line, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l != LineMode {
		return fmt.Errorf("write %s: not an output", l)
	}
	f.mode = value
	f.writes = append(f.writes, Write{Line: l, Value: value})
	return nil
}

// Close marks the sampler as closed.
func (f *FakeSampler) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Set replaces the script with a single sample that repeats forever.
func (f *FakeSampler) Set(s Sample) {
	f.mu.Lock()
	f.samples = []Sample{s}
	f.index = 0
	f.started = false
	f.mu.Unlock()
}

// SetReadError makes every subsequent read fail with err (nil clears it).
func (f *FakeSampler) SetReadError(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

// OnRead installs a hook called before every read.
func (f *FakeSampler) OnRead(hook func(Line)) {
	f.mu.Lock()
	f.onRead = hook
	f.mu.Unlock()
}

// Writes returns a copy of all recorded output writes.
func (f *FakeSampler) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// Mode returns the last value written to the mode line.
func (f *FakeSampler) Mode() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Reads returns the number of ReadInput calls so far.
func (f *FakeSampler) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Closed reports whether Close was called.
func (f *FakeSampler) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
