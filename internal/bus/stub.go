//go:build !linux

package bus

import "errors"

// openHardware is not available on non-Linux platforms.
func openHardware(cfg Config) (Bus, error) {
	return nil, errors.New("bus: not supported on this platform (requires Linux)")
}
