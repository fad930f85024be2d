// Package relay controls the four relays wired to port A of the expander.
// The hardware register is the only record of relay state: every call
// reads or writes the bus, nothing is cached.
package relay

import (
	"errors"
	"fmt"

	"github.com/sweeney/piface-relay/internal/bus"
)

// Count is the number of relays on the board.
const Count = 4

// Full-register values written by SetAll.
const (
	AllOn  byte = 0xFF
	AllOff byte = 0x00
)

var (
	// ErrInvalidIndex is returned for relay indices outside 1..Count.
	ErrInvalidIndex = errors.New("relay: index out of range")

	// ErrBus wraps any bus failure. Callers treat it as a connection fault.
	ErrBus = errors.New("relay: bus access failed")
)

// Controller performs read-modify-write on the relay register.
type Controller struct {
	bus bus.Bus
	reg byte
}

// NewController returns a Controller driving the GPIOA register of b.
func NewController(b bus.Bus) *Controller {
	return &Controller{bus: b, reg: bus.GPIOA}
}

// Mask returns the register bit for relay index (1-based).
func Mask(index int) (byte, error) {
	if index < 1 || index > Count {
		return 0, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return 1 << (index - 1), nil
}

// SetAll writes 0xFF or 0x00, overwriting every relay. No read precedes it.
func (c *Controller) SetAll(on bool) error {
	v := AllOff
	if on {
		v = AllOn
	}
	return c.write(v)
}

// Toggle flips the bit for relay index, leaving the other bits untouched.
func (c *Controller) Toggle(index int) error {
	mask, err := Mask(index)
	if err != nil {
		return err
	}
	v, err := c.Read()
	if err != nil {
		return err
	}
	return c.write(v ^ mask)
}

// StateOf reports whether relay index is energised.
func (c *Controller) StateOf(index int) (bool, error) {
	mask, err := Mask(index)
	if err != nil {
		return false, err
	}
	v, err := c.Read()
	if err != nil {
		return false, err
	}
	return v&mask != 0, nil
}

// States reads the register once and returns all relay states, index 0 = relay 1.
func (c *Controller) States() ([Count]bool, error) {
	var out [Count]bool
	v, err := c.Read()
	if err != nil {
		return out, err
	}
	for i := range out {
		out[i] = v&(1<<i) != 0
	}
	return out, nil
}

// Apply writes the relay bits for states in one write, clearing the unused bits.
// Used to restore persisted relay state on connect.
func (c *Controller) Apply(states [Count]bool) error {
	var v byte
	for i, on := range states {
		if on {
			v |= 1 << i
		}
	}
	return c.write(v)
}

// Read returns the raw register value.
func (c *Controller) Read() (byte, error) {
	v, err := c.bus.ReadReg(c.reg)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBus, err)
	}
	return v, nil
}

func (c *Controller) write(v byte) error {
	if err := c.bus.WriteReg(c.reg, v); err != nil {
		return fmt.Errorf("%w: %w", ErrBus, err)
	}
	return nil
}
