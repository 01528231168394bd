//go:build !linux

package gpio

import "errors"

// RealSampler is not available on non-Linux platforms.
type RealSampler struct{}

// NewRealSampler returns an error on non-Linux platforms.
func NewRealSampler(chipName string, pins Pins) (*RealSampler, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadInput is not implemented on non-Linux platforms.
func (s *RealSampler) ReadInput(l Line) (int, error) {
	return 0, errors.New("gpio: not supported")
}

// WriteOutput is not implemented on non-Linux platforms.
func (s *RealSampler) WriteOutput(l Line, value int) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *RealSampler) Close() error {
	return nil
}
