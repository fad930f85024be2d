// Package gpio drives the status LED that shows when a destructive action
// is armed. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Indicator is a single on/off output.
type Indicator interface {
	// Set drives the output: true = lit.
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO chip on the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// NopIndicator is used when no LED pin is configured.
type NopIndicator struct{}

// Set does nothing.
func (NopIndicator) Set(bool) error { return nil }

// Close does nothing.
func (NopIndicator) Close() error { return nil }
