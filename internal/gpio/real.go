//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealSampler accesses actual hardware using the Linux GPIO character device.
// Lines are requested once at construction and held until Close. Reads and
// writes racing with Close fail instead of touching released lines.
type RealSampler struct {
	mu    sync.RWMutex
	chip  *gpiocdev.Chip
	lines map[Line]*gpiocdev.Line
}

// NewRealSampler opens the chip and requests the pattern inputs and the mode output.
// The mode output starts low (DF mode off).
func NewRealSampler(chipName string, pins Pins) (*RealSampler, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("antenna-control"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	s := &RealSampler{
		chip:  chip,
		lines: make(map[Line]*gpiocdev.Line, 4),
	}

	for _, l := range []Line{LinePattern0, LinePattern1, LinePattern2} {
		offset, _ := pins.Offset(l)
		line, err := chip.RequestLine(offset, gpiocdev.AsInput)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", l, offset, err)
		}
		s.lines[l] = line
	}

	mode, err := chip.RequestLine(pins.Mode, gpiocdev.AsOutput(0))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("request %s pin %d: %w", LineMode, pins.Mode, err)
	}
	s.lines[LineMode] = mode

	return s, nil
}

// ReadInput returns the raw value of the line.
func (s *RealSampler) ReadInput(l Line) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	line, ok := s.lines[l]
	if !ok {
		return 0, fmt.Errorf("read %s: line not requested", l)
	}
	v, err := line.Value()
	if err != nil {
		return 0, fmt.Errorf("read %s pin: %w", l, err)
	}
	return v, nil
}

// WriteOutput sets the value of an output line.
func (s *RealSampler) WriteOutput(l Line, value int) error {
	if l != LineMode {
		return fmt.Errorf("write %s: not an output", l)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	line, ok := s.lines[l]
	if !ok {
		return fmt.Errorf("write %s: line not requested", l)
	}
	if err := line.SetValue(value & 1); err != nil {
		return fmt.Errorf("write %s pin: %w", l, err)
	}
	return nil
}

// Close releases GPIO resources.
// The mode output is driven low and reverted to an input before release so the
// switching unit sees DF mode off while the daemon is down.
func (s *RealSampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error

	if mode, ok := s.lines[LineMode]; ok {
		if err := mode.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear mode pin: %w", err))
		}
		if err := mode.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure mode pin: %w", err))
		}
	}
	for l, line := range s.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l, err))
		}
	}
	s.lines = nil

	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
