//go:build !linux

package gpio

import "errors"

// LED is not available on non-Linux platforms.
type LED struct{}

// NewLED returns an error on non-Linux platforms.
func NewLED(chipName string, pin int) (*LED, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (l *LED) Set(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (l *LED) Close() error {
	return nil
}
