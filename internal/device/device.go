// Package device is the relay board's context object. It owns the bus
// connection, the relay controller, the confirmation gate and the cadence
// counter, and turns client commands and ticks into relay operations,
// telemetry fetches and broadcasts.
//
// A Device is not safe for concurrent use. Run serialises all access on
// one goroutine; other goroutines reach it through a Client.
package device

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/piface-relay/internal/bus"
	"github.com/sweeney/piface-relay/internal/gpio"
	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/mqtt"
	"github.com/sweeney/piface-relay/internal/power"
	"github.com/sweeney/piface-relay/internal/relay"
	"github.com/sweeney/piface-relay/internal/status"
	"github.com/sweeney/piface-relay/internal/store"
	"github.com/sweeney/piface-relay/internal/telemetry"
)

// ErrNotConnected is returned for relay and action commands while the
// board is disconnected.
var ErrNotConnected = errors.New("device: not connected")

// DefaultName is used in client messages when no name is configured.
const DefaultName = "PiFace Relay"

// Opener opens the expander bus. It is called on every connect.
type Opener func() (bus.Bus, error)

// Deps are the collaborators of a Device. Open, Collector, Publisher and
// Power are required; the rest have no-op defaults.
type Deps struct {
	Name       string
	Open       Opener
	Collector  telemetry.Collector
	Publisher  mqtt.Publisher
	Link       mqtt.ConnectionStatus // optional; reported to the tracker each tick
	Power      power.Executor
	Indicator  gpio.Indicator
	Store      *store.Store
	Tracker    *status.Tracker
	ArmTimeout time.Duration
	Restore    bool // re-apply the saved relay state on connect
	Now        func() time.Time
}

// Device drives one relay board.
type Device struct {
	name      string
	open      Opener
	collector telemetry.Collector
	pub       mqtt.Publisher
	link      mqtt.ConnectionStatus
	power     power.Executor
	led       gpio.Indicator
	store     *store.Store
	tracker   *status.Tracker
	restore   bool
	now       func() time.Time

	bus     bus.Bus // nil while disconnected
	relays  *relay.Controller
	confirm *logic.Confirmer
	cadence *logic.Cadence
	shown   logic.Action // armed action last broadcast
}

// New creates a disconnected Device.
func New(d Deps) (*Device, error) {
	if d.Open == nil || d.Collector == nil || d.Publisher == nil || d.Power == nil {
		return nil, fmt.Errorf("device: open, collector, publisher and power are required")
	}
	if d.Name == "" {
		d.Name = DefaultName
	}
	if d.Indicator == nil {
		d.Indicator = gpio.NopIndicator{}
	}
	if d.Store == nil {
		d.Store = store.New("")
	}
	if d.Tracker == nil {
		d.Tracker = status.NewTracker(time.Now(), status.Config{Device: d.Name})
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Device{
		name:      d.Name,
		open:      d.Open,
		collector: d.Collector,
		pub:       d.Publisher,
		link:      d.Link,
		power:     d.Power,
		led:       d.Indicator,
		store:     d.Store,
		tracker:   d.Tracker,
		restore:   d.Restore,
		now:       d.Now,
		confirm:   logic.NewConfirmer(d.ArmTimeout),
		cadence:   logic.NewCadence(),
	}, nil
}

// Connected reports whether the bus is open.
func (d *Device) Connected() bool {
	return d.bus != nil
}

// Counter returns the current cadence counter.
func (d *Device) Counter() int {
	return d.cadence.Counter()
}

// Connect opens and initialises the expander, restores the saved relay
// state if configured, and broadcasts the relay states. Connecting an
// already connected device is a no-op.
func (d *Device) Connect(ctx context.Context) error {
	if d.bus != nil {
		return nil
	}

	b, err := d.open()
	if err != nil {
		d.message(d.name + " device is not available.")
		return fmt.Errorf("open bus: %w", err)
	}
	if err := bus.Init(b); err != nil {
		b.Close()
		d.message(d.name + " device is not available.")
		return fmt.Errorf("init expander: %w", err)
	}

	d.bus = b
	d.relays = relay.NewController(b)
	d.cadence.Reset()
	d.confirm.Reset()
	d.tracker.SetConnected(true)

	if d.restore {
		if err := d.restoreState(); err != nil {
			return err
		}
	}

	d.message(d.name + " connected successfully.")
	d.resetSwitches()
	return d.loadStates()
}

func (d *Device) restoreState() error {
	st, ok, err := d.store.Load()
	if err != nil {
		log.Printf("device: %v, not restoring relays", err)
		return nil
	}
	if !ok {
		return nil
	}
	if err := d.relays.Apply(st.Relays); err != nil {
		return d.fault(err)
	}
	log.Printf("device: restored relays %v saved at %s", st.Relays, st.SavedAt.Format(time.RFC3339))
	return nil
}

// Disconnect disarms any armed action and closes the bus. Ticking stops
// until the next Connect.
func (d *Device) Disconnect() error {
	if d.bus == nil {
		return nil
	}
	err := d.close()
	d.message(d.name + " disconnected successfully.")
	if err != nil {
		return fmt.Errorf("close bus: %w", err)
	}
	return nil
}

func (d *Device) close() error {
	d.confirm.Reset()
	d.shown = ""
	if err := d.led.Set(false); err != nil {
		log.Printf("device: indicator: %v", err)
	}
	err := d.bus.Close()
	d.bus = nil
	d.relays = nil
	d.tracker.SetConnected(false)
	d.tracker.SetGroup(logic.GroupIdle, "")
	return err
}

// fault handles a bus error during a relay operation: it is reported,
// the device disconnects and the error is returned.
func (d *Device) fault(err error) error {
	log.Printf("device: bus fault: %v", err)
	d.message(fmt.Sprintf("%s communication error: %v", d.name, err))
	if cerr := d.close(); cerr != nil {
		log.Printf("device: close after fault: %v", cerr)
	}
	return err
}

// Handle executes one client command.
func (d *Device) Handle(ctx context.Context, cmd logic.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	switch cmd.Kind {
	case logic.CommandConnect:
		return d.Connect(ctx)
	case logic.CommandDisconnect:
		return d.Disconnect()
	}

	if d.bus == nil {
		return ErrNotConnected
	}
	if cmd.Kind == logic.CommandToggle {
		return d.toggle(cmd.Relay)
	}
	return d.activate(ctx, cmd.Action)
}

// toggle flips one relay and reports the state read back from the register.
func (d *Device) toggle(index int) error {
	if err := d.relays.Toggle(index); err != nil {
		if errors.Is(err, relay.ErrInvalidIndex) {
			return err
		}
		return d.fault(err)
	}

	on, err := d.relays.StateOf(index)
	if err != nil {
		return d.fault(err)
	}
	state := logic.StateOf(on)
	if err := d.pub.PublishRelay(index, state); err != nil {
		log.Printf("device: publish relay %d: %v", index, err)
	}
	d.tracker.SetRelay(index, on)
	d.message(fmt.Sprintf("%s Relay %d: %s", d.name, index, state))
	return d.save()
}

// activate runs one step of the arm/confirm cycle for a.
func (d *Device) activate(ctx context.Context, a logic.Action) error {
	now := d.now()
	dec, err := d.confirm.Activate(a, now)
	if err != nil {
		return err
	}

	if dec.Outcome == logic.OutcomeArmed {
		if dec.Replaced != "" {
			log.Printf("device: %s disarmed by %s", dec.Replaced, a)
		}
		d.message(a.Prompt())
		d.setGroup(logic.GroupAlert, a)
		return nil
	}

	d.setGroup(logic.GroupIdle, "")
	switch a {
	case logic.ActionAllOn, logic.ActionAllOff:
		on := a == logic.ActionAllOn
		if err := d.relays.SetAll(on); err != nil {
			return d.fault(err)
		}
		d.message("All relays set " + string(logic.StateOf(on)))
		if err := d.loadStates(); err != nil {
			return err
		}
		return d.save()
	case logic.ActionShutdown:
		d.message("Halting system. Bye bye.")
		if err := d.power.Shutdown(ctx); err != nil {
			d.message(fmt.Sprintf("System shutdown failed: %v", err))
			return err
		}
	case logic.ActionRestart:
		d.message("Restarting system. See you soon.")
		if err := d.power.Restart(ctx); err != nil {
			d.message(fmt.Sprintf("System restart failed: %v", err))
			return err
		}
	}
	return nil
}

// Tick runs one scheduler step. It does nothing while disconnected. A bus
// error on the 5-tick relay read disconnects the device.
func (d *Device) Tick(ctx context.Context, now time.Time) {
	if d.bus == nil {
		return
	}

	due := d.cadence.Tick()

	clock := telemetry.Clock(now)
	if err := d.pub.PublishTime(clock); err != nil {
		log.Printf("device: publish time: %v", err)
	}
	d.tracker.SetTick(due.Counter, clock)
	if d.link != nil {
		d.tracker.SetMQTTConnected(d.link.IsConnected())
	}

	if due.ResetSwitches {
		// The reset also checks the board is still there.
		states, err := d.relays.States()
		if err != nil {
			d.fault(err)
			return
		}
		d.tracker.SetRelays(states)
		d.resetSwitches()
	} else if d.shown != "" {
		if _, armed := d.confirm.Armed(now); !armed {
			d.setGroup(logic.GroupIdle, "")
		}
	}

	if due.SystemInfo {
		info, err := d.collector.SystemInfo(ctx)
		if err != nil {
			log.Printf("device: system info: %v", err)
		}
		if err := d.pub.PublishSystemInfo(info); err != nil {
			log.Printf("device: publish system info: %v", err)
		}
		d.tracker.SetSystem(info)
	}

	if due.NetworkInfo {
		info, err := d.collector.NetworkInfo(ctx)
		if err != nil {
			log.Printf("device: network info: %v", err)
		}
		if err := d.pub.PublishNetworkInfo(info); err != nil {
			log.Printf("device: publish network info: %v", err)
		}
		d.tracker.SetNetwork(info)
	}
}

// resetSwitches disarms the confirmation gate and broadcasts the idle group.
func (d *Device) resetSwitches() {
	d.confirm.Reset()
	d.setGroup(logic.GroupIdle, "")
}

func (d *Device) setGroup(group logic.GroupState, armed logic.Action) {
	d.shown = armed
	if err := d.led.Set(armed != ""); err != nil {
		log.Printf("device: indicator: %v", err)
	}
	if err := d.pub.PublishSwitchGroup(mqtt.SwitchGroup{State: group, Armed: armed}); err != nil {
		log.Printf("device: publish switch group: %v", err)
	}
	d.tracker.SetGroup(group, armed)
}

// loadStates re-reads all relays and broadcasts them.
func (d *Device) loadStates() error {
	states, err := d.relays.States()
	if err != nil {
		return d.fault(err)
	}
	for i, on := range states {
		if err := d.pub.PublishRelay(i+1, logic.StateOf(on)); err != nil {
			log.Printf("device: publish relay %d: %v", i+1, err)
		}
	}
	d.tracker.SetRelays(states)
	return nil
}

// save persists the current register. A failed save is logged only.
func (d *Device) save() error {
	if !d.store.Enabled() {
		return nil
	}
	states, err := d.relays.States()
	if err != nil {
		return d.fault(err)
	}
	if err := d.store.Save(states, d.now()); err != nil {
		log.Printf("device: save relay state: %v", err)
	}
	return nil
}

func (d *Device) message(text string) {
	log.Printf("device: %s", text)
	if err := d.pub.PublishMessage(text, d.now()); err != nil {
		log.Printf("device: publish message: %v", err)
	}
	d.tracker.SetMessage(text)
}
