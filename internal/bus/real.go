//go:build linux

package bus

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// MCP23S17 SPI opcodes: 0100 A2 A1 A0 R/W.
const (
	spiOpWrite byte = 0x40
	spiOpRead  byte = 0x41
)

// DefaultSpeedHz is the SPI clock used when none is configured.
const DefaultSpeedHz = 10_000_000

func openHardware(cfg Config) (Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	if strings.ToLower(cfg.Kind) == KindI2C {
		return NewI2CBus(cfg.Device, cfg.Address)
	}
	speed := cfg.SpeedHz
	if speed <= 0 {
		speed = DefaultSpeedHz
	}
	return NewSPIBus(cfg.Device, cfg.Address, physic.Frequency(speed)*physic.Hertz)
}

// SPIBus talks to an MCP23S17 over SPI.
type SPIBus struct {
	port   spi.PortCloser
	conn   spi.Conn
	hwAddr byte
}

// NewSPIBus opens the SPI port (empty name picks the first one) and
// connects at the given clock in mode 0.
func NewSPIBus(port string, hwAddr uint8, speed physic.Frequency) (*SPIBus, error) {
	if hwAddr > 7 {
		return nil, fmt.Errorf("spi hardware address %d out of range 0-7", hwAddr)
	}
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", port, err)
	}
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("connect spi port %q: %w", port, err)
	}
	return &SPIBus{port: p, conn: c, hwAddr: hwAddr}, nil
}

// ReadReg reads one register.
func (b *SPIBus) ReadReg(reg byte) (byte, error) {
	w := []byte{spiOpRead | b.hwAddr<<1, reg, 0x00}
	r := make([]byte, len(w))
	if err := b.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("spi read reg 0x%02x: %w", reg, err)
	}
	return r[2], nil
}

// WriteReg writes one register.
func (b *SPIBus) WriteReg(reg, value byte) error {
	w := []byte{spiOpWrite | b.hwAddr<<1, reg, value}
	if err := b.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("spi write reg 0x%02x: %w", reg, err)
	}
	return nil
}

// Close releases the SPI port.
func (b *SPIBus) Close() error {
	if b.port == nil {
		return nil
	}
	if err := b.port.Close(); err != nil {
		return fmt.Errorf("close spi port: %w", err)
	}
	return nil
}

// I2CBus talks to an MCP23017 over I2C.
type I2CBus struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// DefaultI2CAddress is the MCP23017 address with A2..A0 tied low.
const DefaultI2CAddress = 0x20

// NewI2CBus opens the I2C bus (empty name picks the first one).
// Address 0..7 is taken as the A2..A0 pin setting.
func NewI2CBus(name string, addr uint8) (*I2CBus, error) {
	if addr < 8 {
		addr += DefaultI2CAddress
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return &I2CBus{
		bus: b,
		dev: &i2c.Dev{Addr: uint16(addr), Bus: b},
	}, nil
}

// ReadReg reads one register.
func (b *I2CBus) ReadReg(reg byte) (byte, error) {
	r := make([]byte, 1)
	if err := b.dev.Tx([]byte{reg}, r); err != nil {
		return 0, fmt.Errorf("i2c read reg 0x%02x: %w", reg, err)
	}
	return r[0], nil
}

// WriteReg writes one register.
func (b *I2CBus) WriteReg(reg, value byte) error {
	if err := b.dev.Tx([]byte{reg, value}, nil); err != nil {
		return fmt.Errorf("i2c write reg 0x%02x: %w", reg, err)
	}
	return nil
}

// Close releases the I2C bus.
func (b *I2CBus) Close() error {
	if b.bus == nil {
		return nil
	}
	if err := b.bus.Close(); err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	return nil
}
