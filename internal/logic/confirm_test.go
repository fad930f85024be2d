package logic

import (
	"errors"
	"testing"
	"time"
)

func TestFirstActivationArms(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewConfirmer(5 * time.Second)

	for _, a := range Actions {
		c.Reset()
		d, err := c.Activate(a, now)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", a, err)
		}
		if d.Outcome != OutcomeArmed {
			t.Errorf("%s: expected ARMED, got %s", a, d.Outcome)
		}
		if got, ok := c.Armed(now); !ok || got != a {
			t.Errorf("%s: expected armed %s, got %q", a, a, got)
		}
		if c.State(now) != GroupAlert {
			t.Errorf("%s: expected ALERT group state", a)
		}
	}
}

func TestSecondActivationExecutes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewConfirmer(5 * time.Second)

	c.Activate(ActionShutdown, now)
	d, err := c.Activate(ActionShutdown, now.Add(time.Second))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Outcome != OutcomeExecute || d.Action != ActionShutdown {
		t.Errorf("expected EXECUTE SHUTDOWN, got %s %s", d.Outcome, d.Action)
	}
	if _, ok := c.Armed(now.Add(time.Second)); ok {
		t.Error("should be idle after execution")
	}
	if c.State(now.Add(time.Second)) != GroupIdle {
		t.Error("expected IDLE group state after execution")
	}

	// A third activation starts over.
	d, _ = c.Activate(ActionShutdown, now.Add(2*time.Second))
	if d.Outcome != OutcomeArmed {
		t.Errorf("third activation: expected ARMED, got %s", d.Outcome)
	}
}

func TestDifferentActionRearms(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewConfirmer(5 * time.Second)

	c.Activate(ActionAllOff, now)
	d, _ := c.Activate(ActionShutdown, now.Add(time.Second))
	if d.Outcome != OutcomeArmed {
		t.Fatalf("expected ARMED, got %s", d.Outcome)
	}
	if d.Replaced != ActionAllOff {
		t.Errorf("expected ALL_OFF replaced, got %q", d.Replaced)
	}

	// ALL_OFF is no longer armed, so activating it arms again.
	d, _ = c.Activate(ActionAllOff, now.Add(2*time.Second))
	if d.Outcome != OutcomeArmed {
		t.Errorf("expected ALL_OFF to re-arm, got %s", d.Outcome)
	}
	if d.Replaced != ActionShutdown {
		t.Errorf("expected SHUTDOWN replaced, got %q", d.Replaced)
	}
}

func TestResetBetweenActivations(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewConfirmer(0)

	c.Activate(ActionRestart, now)
	if !c.Reset() {
		t.Error("Reset should report armed state")
	}
	if c.Reset() {
		t.Error("second Reset should report idle")
	}

	d, _ := c.Activate(ActionRestart, now)
	if d.Outcome != OutcomeArmed {
		t.Errorf("expected ARMED after reset, got %s", d.Outcome)
	}
}

func TestArmExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewConfirmer(5 * time.Second)

	c.Activate(ActionAllOn, now)

	if _, ok := c.Armed(now.Add(4999 * time.Millisecond)); !ok {
		t.Error("should still be armed before timeout")
	}
	if _, ok := c.Armed(now.Add(5 * time.Second)); ok {
		t.Error("should expire at timeout")
	}

	d, _ := c.Activate(ActionAllOn, now.Add(6*time.Second))
	if d.Outcome != OutcomeArmed {
		t.Errorf("activation after expiry should arm, got %s", d.Outcome)
	}
	if d.Replaced != "" {
		t.Errorf("expired action should not be reported as replaced, got %q", d.Replaced)
	}
}

func TestNoExpiryWhenDisabled(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewConfirmer(0)

	c.Activate(ActionAllOn, now)
	d, _ := c.Activate(ActionAllOn, now.Add(24*time.Hour))
	if d.Outcome != OutcomeExecute {
		t.Errorf("expected EXECUTE with expiry disabled, got %s", d.Outcome)
	}
}

func TestActivateUnknownAction(t *testing.T) {
	c := NewConfirmer(time.Second)

	_, err := c.Activate(Action("REBOOT_ALL"), time.Now())
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
	if _, ok := c.Armed(time.Now()); ok {
		t.Error("unknown action should not arm")
	}
}

func TestSingleActivationNeverExecutes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewConfirmer(5 * time.Second)

	// Alternating actions never confirm anything.
	seq := []Action{ActionAllOn, ActionAllOff, ActionShutdown, ActionRestart, ActionAllOn, ActionShutdown}
	for i, a := range seq {
		d, _ := c.Activate(a, now.Add(time.Duration(i)*time.Second))
		if d.Outcome == OutcomeExecute {
			t.Fatalf("activation %d (%s) executed without confirmation", i, a)
		}
	}
}
