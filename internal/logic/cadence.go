package logic

// Cadence constants, in ticks.
const (
	CycleLength      = 60
	SwitchResetEvery = 5
	SystemInfoEvery  = 10
)

// Due reports which cadences fire on a tick. The clock fields refresh on
// every tick and are not represented.
type Due struct {
	// Counter is the counter value the tick was evaluated at.
	Counter       int
	ResetSwitches bool
	SystemInfo    bool
	NetworkInfo   bool
}

// Cadence fans one fixed-period tick into the 5/10/60-tick cycles. The
// counter runs down from CycleLength-1 to 0 and wraps, so all cadences are
// phase-locked to the same cycle.
type Cadence struct {
	counter int
}

// NewCadence returns a Cadence at the start of a cycle.
func NewCadence() *Cadence {
	return &Cadence{counter: CycleLength - 1}
}

// Reset restarts the cycle, as on connect.
func (c *Cadence) Reset() {
	c.counter = CycleLength - 1
}

// Counter returns the value the next tick will be evaluated at.
func (c *Cadence) Counter() int {
	return c.counter
}

// Tick evaluates the current counter and advances it.
func (c *Cadence) Tick() Due {
	d := Due{
		Counter:       c.counter,
		ResetSwitches: c.counter%SwitchResetEvery == 0,
		SystemInfo:    c.counter%SystemInfoEvery == 0,
	}
	if c.counter == 0 {
		d.NetworkInfo = true
		c.counter = CycleLength
	}
	c.counter--
	return d
}
