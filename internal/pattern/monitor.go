package pattern

import (
	"fmt"
	"sync"

	"github.com/sweeney/antenna-control/internal/gpio"
)

// Decode assembles the switch pattern from the three pattern line values.
func Decode(l0, l1, l2 int) Code {
	return Code(l0&1) | Code(l1&1)<<1 | Code(l2&1)<<2
}

// Monitor holds the last observed pattern and detects changes.
type Monitor struct {
	reader gpio.Reader

	mu      sync.Mutex
	current Code
	counts  Counts
}

// NewMonitor creates a monitor reading from r. The stored pattern starts at CodeUnknown.
func NewMonitor(r gpio.Reader) *Monitor {
	return &Monitor{reader: r}
}

// Sample reads the pattern lines in bit order, stores the decoded code and
// reports whether it differs from the previous sample.
// A read error leaves the stored pattern untouched.
func (m *Monitor) Sample() (Code, bool, error) {
	var bits [3]int
	for i, l := range []gpio.Line{gpio.LinePattern0, gpio.LinePattern1, gpio.LinePattern2} {
		v, err := m.reader.ReadInput(l)
		if err != nil {
			m.mu.Lock()
			m.counts.ReadErrors++
			m.mu.Unlock()
			return m.Current(), false, fmt.Errorf("sample %s: %w", l, err)
		}
		bits[i] = v
	}
	code := Decode(bits[0], bits[1], bits[2])

	m.mu.Lock()
	defer m.mu.Unlock()

	changed := code != m.current
	// Overwritten every sample, changed or not.
	m.current = code
	m.counts.Samples++
	if changed {
		m.counts.Changes++
	}
	return code, changed, nil
}

// Current returns the last observed pattern.
func (m *Monitor) Current() Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Counts returns a copy of the activity counters.
func (m *Monitor) Counts() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts
}
