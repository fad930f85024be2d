package logic

import (
	"fmt"
	"time"
)

// Outcome is the result of activating a destructive action.
type Outcome int

const (
	// OutcomeArmed means the action was armed and must not run yet.
	OutcomeArmed Outcome = iota
	// OutcomeExecute means the activation confirmed an armed action.
	OutcomeExecute
)

func (o Outcome) String() string {
	if o == OutcomeExecute {
		return "EXECUTE"
	}
	return "ARMED"
}

// Decision describes what Confirmer.Activate decided.
type Decision struct {
	Outcome Outcome
	Action  Action
	// Replaced is the action that was armed before this activation and
	// has now been disarmed, or "" if none.
	Replaced Action
}

// Confirmer is the arm/confirm gate. At most one action is armed at a
// time: arming a different action disarms the previous one, and an armed
// action expires after the timeout.
type Confirmer struct {
	timeout time.Duration
	armed   Action
	since   time.Time
}

// NewConfirmer creates an idle Confirmer. A timeout <= 0 disables expiry.
func NewConfirmer(timeout time.Duration) *Confirmer {
	return &Confirmer{timeout: timeout}
}

// Activate handles one activation of a. The first activation arms it;
// a second activation of the same armed action confirms it and returns
// to idle.
func (c *Confirmer) Activate(a Action, now time.Time) (Decision, error) {
	if !a.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	c.expire(now)

	if c.armed == a {
		c.armed = ""
		c.since = time.Time{}
		return Decision{Outcome: OutcomeExecute, Action: a}, nil
	}

	prev := c.armed
	c.armed = a
	c.since = now
	return Decision{Outcome: OutcomeArmed, Action: a, Replaced: prev}, nil
}

// Reset disarms any armed action. Returns true if one was armed.
func (c *Confirmer) Reset() bool {
	wasArmed := c.armed != ""
	c.armed = ""
	c.since = time.Time{}
	return wasArmed
}

// Armed returns the armed action, if any, at time now.
func (c *Confirmer) Armed(now time.Time) (Action, bool) {
	c.expire(now)
	return c.armed, c.armed != ""
}

// State returns the switch group visual state at time now.
func (c *Confirmer) State(now time.Time) GroupState {
	if _, ok := c.Armed(now); ok {
		return GroupAlert
	}
	return GroupIdle
}

func (c *Confirmer) expire(now time.Time) {
	if c.armed == "" || c.timeout <= 0 {
		return
	}
	if now.Sub(c.since) >= c.timeout {
		c.armed = ""
		c.since = time.Time{}
	}
}
