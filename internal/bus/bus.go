// Package bus provides register access to the MCP23x17 I/O expander that
// drives the relay board.
// The real implementations talk SPI (MCP23S17) or I2C (MCP23017) through periph.io.
// The fake implementation keeps registers in memory for tests.
package bus

import (
	"fmt"
	"strings"
)

// Bus reads and writes single expander registers.
type Bus interface {
	// ReadReg returns the current value of register reg.
	ReadReg(reg byte) (byte, error)

	// WriteReg stores value in register reg.
	WriteReg(reg, value byte) error

	// Close releases the bus.
	Close() error
}

// Register addresses (IOCON.BANK = 0).
const (
	IODIRA byte = 0x00
	IODIRB byte = 0x01
	IOCON  byte = 0x0A
	GPPUA  byte = 0x0C
	GPPUB  byte = 0x0D
	GPIOA  byte = 0x12
	GPIOB  byte = 0x13
	OLATA  byte = 0x14
)

// IOCON flag bits. A zero bit selects the default (bank off, mirror off,
// sequential on, slew on, push-pull, active-low interrupt).
const (
	IOConBank   byte = 0x80
	IOConMirror byte = 0x40
	IOConSeqOff byte = 0x20
	IOConDisSlw byte = 0x10
	IOConHAEN   byte = 0x08
	IOConODR    byte = 0x04
	IOConIntPol byte = 0x02
)

// Kinds accepted by Open.
const (
	KindSPI  = "spi"
	KindI2C  = "i2c"
	KindFake = "fake"
)

// Config selects and addresses the expander.
type Config struct {
	Kind    string // spi, i2c or fake
	Device  string // periph port name, e.g. "/dev/spidev0.0" or "1"; empty picks the first
	Address uint8  // hardware address pins (SPI) or 7-bit I2C address
	SpeedHz int64  // SPI clock; ignored for I2C
}

// Open returns the bus described by cfg. The expander is not initialised.
func Open(cfg Config) (Bus, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindFake:
		return NewFakeBus(), nil
	case KindSPI, KindI2C:
		return openHardware(cfg)
	default:
		return nil, fmt.Errorf("unknown bus kind %q", cfg.Kind)
	}
}

// initSequence is the register setup the relay board needs: HAEN with
// sequential addressing off, both ports output, port B pull-ups disabled.
var initSequence = []struct {
	name  string
	reg   byte
	value byte
}{
	{"IOCON", IOCON, IOConSeqOff | IOConHAEN},
	{"IODIRA", IODIRA, 0x00},
	{"IODIRB", IODIRB, 0x00},
	{"GPPUB", GPPUB, 0x00},
}

// Init writes the configuration, direction and pull-up registers.
// No readback is performed.
func Init(b Bus) error {
	for _, step := range initSequence {
		if err := b.WriteReg(step.reg, step.value); err != nil {
			return fmt.Errorf("write %s: %w", step.name, err)
		}
	}
	return nil
}
