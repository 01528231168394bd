// Package gpio provides access to the antenna switch lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Line identifies a line by its role in the switching scheme.
type Line int

const (
	LineMode     Line = iota // DF mode output
	LinePattern0             // switch pattern bit 0
	LinePattern1             // switch pattern bit 1
	LinePattern2             // switch pattern bit 2
)

func (l Line) String() string {
	switch l {
	case LineMode:
		return "mode"
	case LinePattern0:
		return "pattern0"
	case LinePattern1:
		return "pattern1"
	case LinePattern2:
		return "pattern2"
	}
	return fmt.Sprintf("line(%d)", int(l))
}

// Default wiring (BCM numbering) between the Pi and the switching microcontroller.
const (
	DefaultChip        = "gpiochip0"
	DefaultPinMode     = 17
	DefaultPinPattern0 = 21
	DefaultPinPattern1 = 22
	DefaultPinPattern2 = 27
)

// Pins maps each line role to its offset on the GPIO chip.
type Pins struct {
	Mode     int
	Pattern0 int
	Pattern1 int
	Pattern2 int
}

// DefaultPins returns the stock wiring.
func DefaultPins() Pins {
	return Pins{
		Mode:     DefaultPinMode,
		Pattern0: DefaultPinPattern0,
		Pattern1: DefaultPinPattern1,
		Pattern2: DefaultPinPattern2,
	}
}

// Offset returns the chip offset for the given line.
func (p Pins) Offset(l Line) (int, error) {
	switch l {
	case LineMode:
		return p.Mode, nil
	case LinePattern0:
		return p.Pattern0, nil
	case LinePattern1:
		return p.Pattern1, nil
	case LinePattern2:
		return p.Pattern2, nil
	}
	return 0, fmt.Errorf("unknown %v", l)
}

// Reader reads raw line values (0 or 1).
type Reader interface {
	ReadInput(line Line) (int, error)
}

// Writer drives output lines.
type Writer interface {
	WriteOutput(line Line, value int) error
}

// Sampler is the full hardware surface used by the daemon.
type Sampler interface {
	Reader
	Writer

	// Close releases GPIO resources.
	Close() error
}
