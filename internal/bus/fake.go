package bus

import "fmt"

// FakeBus is a test double holding expander registers in memory.
type FakeBus struct {
	// Regs holds register contents, indexed by address.
	Regs [0x16]byte

	// Reads records the address of every ReadReg call, in order.
	Reads []byte

	// Writes records every WriteReg call, in order.
	Writes []Write

	// ReadError, if set, will be returned by ReadReg.
	ReadError error

	// WriteError, if set, will be returned by WriteReg.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// Write is a single recorded register write.
type Write struct {
	Reg   byte
	Value byte
}

// NewFakeBus creates a FakeBus with all registers zero.
func NewFakeBus() *FakeBus {
	return &FakeBus{}
}

// ReadReg returns the stored register value.
func (f *FakeBus) ReadReg(reg byte) (byte, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if int(reg) >= len(f.Regs) {
		return 0, fmt.Errorf("register 0x%02x out of range", reg)
	}
	f.Reads = append(f.Reads, reg)
	return f.Regs[reg], nil
}

// WriteReg stores the register value.
func (f *FakeBus) WriteReg(reg, value byte) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if int(reg) >= len(f.Regs) {
		return fmt.Errorf("register 0x%02x out of range", reg)
	}
	f.Writes = append(f.Writes, Write{Reg: reg, Value: value})
	f.Regs[reg] = value
	return nil
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded accesses and injected errors. Registers are kept.
func (f *FakeBus) Reset() {
	f.Reads = nil
	f.Writes = nil
	f.ReadError = nil
	f.WriteError = nil
	f.Closed = false
}
