package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sweeney/piface-relay/internal/device"
	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/relay"
)

// ResultJSON is the response body of every command endpoint.
type ResultJSON struct {
	Result ResultInner `json:"result"`
}

// ResultInner reports how a command ended.
type ResultInner struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// statusCode maps a command error to an HTTP status.
func statusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, logic.ErrInvalidCommand),
		errors.Is(err, logic.ErrUnknownAction),
		errors.Is(err, relay.ErrInvalidIndex):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, relay.ErrBus):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, code int, kind logic.CommandKind, err error) {
	res := ResultInner{Command: string(kind), OK: err == nil}
	if err != nil {
		res.Error = err.Error()
	}
	data, _ := json.Marshal(ResultJSON{Result: res})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}
