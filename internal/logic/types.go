// Package logic contains the pure control logic for the relay board:
// the arm/confirm gate for destructive actions and the tick cadence.
// This package has NO external dependencies (no bus, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"strings"
)

// State represents the logical state of a relay.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf maps an energised flag to a State.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// Action is one of the destructive switches guarded by arm/confirm.
type Action string

const (
	ActionAllOn    Action = "ALL_ON"
	ActionAllOff   Action = "ALL_OFF"
	ActionShutdown Action = "SHUTDOWN"
	ActionRestart  Action = "RESTART"
)

// Actions lists the destructive actions in switch-group order.
var Actions = []Action{ActionAllOn, ActionAllOff, ActionShutdown, ActionRestart}

// ErrUnknownAction is returned for action names outside Actions.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Valid reports whether a is one of Actions.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Prompt is the warning sent to the client when a is armed.
func (a Action) Prompt() string {
	switch a {
	case ActionAllOn:
		return "All relays going ON. Click again to confirm."
	case ActionAllOff:
		return "All relays going OFF. Click again to confirm."
	case ActionShutdown:
		return "System is going to shutdown. Click again to confirm."
	case ActionRestart:
		return "System is going to restart. Click again to confirm."
	}
	return ""
}

// GroupState is the visual state of the destructive switch group.
type GroupState string

const (
	GroupIdle  GroupState = "IDLE"
	GroupAlert GroupState = "ALERT"
)

// CommandKind identifies a client request.
type CommandKind string

const (
	CommandToggle     CommandKind = "toggle"
	CommandActivate   CommandKind = "activate"
	CommandConnect    CommandKind = "connect"
	CommandDisconnect CommandKind = "disconnect"
)

// ErrInvalidCommand is returned by Command.Validate.
var ErrInvalidCommand = errors.New("invalid command")

// Command is a single client request. Relay is used by toggle,
// Action by activate.
type Command struct {
	Kind   CommandKind
	Relay  int
	Action Action
}

// Validate checks that the fields required by Kind are present.
// Relay range is checked by the relay controller.
func (c Command) Validate() error {
	switch c.Kind {
	case CommandToggle:
		if c.Relay == 0 {
			return fmt.Errorf("%w: toggle needs a relay", ErrInvalidCommand)
		}
	case CommandActivate:
		if !c.Action.Valid() {
			return fmt.Errorf("%w: %w: %q", ErrInvalidCommand, ErrUnknownAction, c.Action)
		}
	case CommandConnect, CommandDisconnect:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, c.Kind)
	}
	return nil
}
