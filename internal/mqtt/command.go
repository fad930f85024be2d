package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sweeney/piface-relay/internal/logic"
)

// CommandPayload is the JSON body accepted on the command topic:
//
//	{"command":"toggle","relay":2}
//	{"command":"activate","action":"SHUTDOWN"}
//	{"command":"connect"}
type CommandPayload struct {
	Command string `json:"command"`
	Relay   int    `json:"relay,omitempty"`
	Action  string `json:"action,omitempty"`
}

// ParseCommand decodes and validates a command payload.
func ParseCommand(payload []byte) (logic.Command, error) {
	var p CommandPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return logic.Command{}, fmt.Errorf("%w: %w", logic.ErrInvalidCommand, err)
	}

	cmd := logic.Command{
		Kind:  logic.CommandKind(strings.ToLower(strings.TrimSpace(p.Command))),
		Relay: p.Relay,
	}
	if cmd.Kind == logic.CommandActivate {
		a, err := logic.ParseAction(p.Action)
		if err != nil {
			return logic.Command{}, fmt.Errorf("%w: %w", logic.ErrInvalidCommand, err)
		}
		cmd.Action = a
	}
	if err := cmd.Validate(); err != nil {
		return logic.Command{}, err
	}
	return cmd, nil
}
