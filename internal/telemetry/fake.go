package telemetry

import "context"

// FakeCollector is a test double returning scripted telemetry.
type FakeCollector struct {
	System  SystemInfo
	Network NetworkInfo

	// SystemError and NetworkError, if set, are returned alongside the values.
	SystemError  error
	NetworkError error

	// SystemCalls and NetworkCalls count fetches.
	SystemCalls  int
	NetworkCalls int
}

// NewFakeCollector creates a FakeCollector with recognisable values.
func NewFakeCollector() *FakeCollector {
	return &FakeCollector{
		System: SystemInfo{
			Hardware:    "BCM2835",
			Uptime:      "01:02",
			Load:        "0.10/0.05/0.01",
			FreeMemory:  "123456 kB",
			Temperature: "48.3'C",
		},
		Network: NetworkInfo{
			Hostname: "relaypi",
			LocalIP:  "192.168.1.50",
			PublicIP: "203.0.113.7",
		},
	}
}

// SystemInfo returns the scripted system info.
func (f *FakeCollector) SystemInfo(ctx context.Context) (SystemInfo, error) {
	f.SystemCalls++
	return f.System, f.SystemError
}

// NetworkInfo returns the scripted network info.
func (f *FakeCollector) NetworkInfo(ctx context.Context) (NetworkInfo, error) {
	f.NetworkCalls++
	return f.Network, f.NetworkError
}
