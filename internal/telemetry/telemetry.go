// Package telemetry collects host information reported to the client:
// wall clock, system info and network identity.
// The real collector reads /proc, runs a few bounded commands and asks a
// DNS resolver for the public address; the fake returns scripted values.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Unavailable replaces any field whose source failed or produced nothing.
const Unavailable = "unavailable"

// ErrNoOutput is returned when a source produced no usable output.
var ErrNoOutput = errors.New("telemetry: no output")

// TimeInfo holds the wall-clock fields.
type TimeInfo struct {
	LocalTime string // 2006-01-02T15:04:05 in local time
	UTCOffset string // hours, e.g. "1.00"
}

// SystemInfo holds the 10-tick system fields.
type SystemInfo struct {
	Hardware    string
	Uptime      string
	Load        string
	FreeMemory  string
	Temperature string
}

// NetworkInfo holds the 60-tick network fields.
type NetworkInfo struct {
	Hostname string
	LocalIP  string
	PublicIP string
}

// Collector fetches telemetry. Implementations return a fully populated
// value even on error, with failed fields set to Unavailable.
type Collector interface {
	SystemInfo(ctx context.Context) (SystemInfo, error)
	NetworkInfo(ctx context.Context) (NetworkInfo, error)
}

// Clock formats the wall-clock fields for now.
func Clock(now time.Time) TimeInfo {
	_, offset := now.Zone()
	return TimeInfo{
		LocalTime: now.Format("2006-01-02T15:04:05"),
		UTCOffset: fmt.Sprintf("%4.2f", float64(offset)/3600.0),
	}
}

// field runs fetch and stores its result in dst, or Unavailable on failure.
// The error is returned labelled with name.
func field(dst *string, name string, fetch func() (string, error)) error {
	v, err := fetch()
	if err == nil && v == "" {
		err = ErrNoOutput
	}
	if err != nil {
		*dst = Unavailable
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = v
	return nil
}
