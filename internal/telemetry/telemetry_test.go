package telemetry

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
)

func TestClock(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	now := time.Date(2026, 2, 2, 22, 18, 12, 0, zone)

	ti := Clock(now)
	if ti.LocalTime != "2026-02-02T22:18:12" {
		t.Errorf("LocalTime: got %q", ti.LocalTime)
	}
	if ti.UTCOffset != "1.00" {
		t.Errorf("UTCOffset: got %q, want 1.00", ti.UTCOffset)
	}

	ti = Clock(now.In(time.FixedZone("NST", -(3*3600 + 1800))))
	if ti.UTCOffset != "-3.50" {
		t.Errorf("UTCOffset: got %q, want -3.50", ti.UTCOffset)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "00:00"},
		{3*time.Hour + 7*time.Minute + 59*time.Second, "03:07"},
		{25 * time.Hour, "1 day, 01:00"},
		{3*24*time.Hour + 4*time.Hour + 12*time.Minute, "3 days, 04:12"},
	}
	for _, tt := range tests {
		if got := FormatUptime(tt.d); got != tt.want {
			t.Errorf("FormatUptime(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestParsers(t *testing.T) {
	cpuinfo := "processor\t: 0\nmodel name\t: ARMv7\n\nHardware\t: BCM2835\nRevision\t: a02082\nModel\t\t: Raspberry Pi 3 Model B Rev 1.2\n"
	if got, err := parseHardware([]byte(cpuinfo)); err != nil || got != "BCM2835" {
		t.Errorf("parseHardware: got %q, %v", got, err)
	}
	if got, err := parseHardware([]byte("processor\t: 0\nModel\t\t: Raspberry Pi 5\n")); err != nil || got != "Raspberry Pi 5" {
		t.Errorf("parseHardware fallback: got %q, %v", got, err)
	}
	if _, err := parseHardware([]byte("processor\t: 0\n")); !errors.Is(err, ErrNoOutput) {
		t.Errorf("parseHardware empty: expected ErrNoOutput, got %v", err)
	}

	if got, err := parseUptime([]byte("93784.12 180000.00\n")); err != nil || got != "1 day, 02:03" {
		t.Errorf("parseUptime: got %q, %v", got, err)
	}
	if _, err := parseUptime([]byte("abc")); err == nil {
		t.Error("parseUptime: expected error for garbage")
	}

	if got, err := parseLoadAvg([]byte("0.10 0.05 0.01 1/123 4567\n")); err != nil || got != "0.10/0.05/0.01" {
		t.Errorf("parseLoadAvg: got %q, %v", got, err)
	}
	if _, err := parseLoadAvg([]byte("0.10")); err == nil {
		t.Error("parseLoadAvg: expected error for short input")
	}

	meminfo := "MemTotal:         948304 kB\nMemFree:          123456 kB\nMemAvailable:     600000 kB\n"
	if got, err := parseMemFree([]byte(meminfo)); err != nil || got != "123456 kB" {
		t.Errorf("parseMemFree: got %q, %v", got, err)
	}

	if got, err := parseVcgencmd("temp=48.3'C"); err != nil || got != "48.3'C" {
		t.Errorf("parseVcgencmd: got %q, %v", got, err)
	}
	if _, err := parseVcgencmd("VCHI initialization failed"); err == nil {
		t.Error("parseVcgencmd: expected error for garbage")
	}

	if got, err := parseThermal([]byte("48312\n")); err != nil || got != "48.3'C" {
		t.Errorf("parseThermal: got %q, %v", got, err)
	}
}

func TestLocalIPv4(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)},
		&net.IPNet{IP: net.ParseIP("192.168.1.50"), Mask: net.CIDRMask(24, 32)},
		&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
		&net.IPAddr{IP: net.ParseIP("10.0.0.2")},
	}
	if got := localIPv4(addrs); got != "192.168.1.50 10.0.0.2" {
		t.Errorf("got %q", got)
	}
}

func TestField(t *testing.T) {
	var v string

	if err := field(&v, "x", func() (string, error) { return "ok", nil }); err != nil || v != "ok" {
		t.Errorf("success: got %q, %v", v, err)
	}

	err := field(&v, "x", func() (string, error) { return "", nil })
	if !errors.Is(err, ErrNoOutput) || v != Unavailable {
		t.Errorf("empty: got %q, %v", v, err)
	}

	err = field(&v, "x", func() (string, error) { return "junk", errors.New("boom") })
	if err == nil || v != Unavailable {
		t.Errorf("error: got %q, %v", v, err)
	}
}

// startDNS serves A answers for every question on a local UDP port.
func startDNS(t *testing.T, answer string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			if answer != "" {
				rr, _ := dns.NewRR(r.Question[0].Name + " 0 IN A " + answer)
				m.Answer = append(m.Answer, rr)
			}
			w.WriteMsg(m)
		}),
		NotifyStartedFunc: func() { close(started) },
	}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func writeProc(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"cpuinfo": "processor\t: 0\nHardware\t: BCM2835\n",
		"uptime":  "3725.50 7000.00\n",
		"loadavg": "0.52 0.58 0.59 1/210 1234\n",
		"meminfo": "MemTotal: 948304 kB\nMemFree: 51200 kB\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func newTestCollector(t *testing.T) *HostCollector {
	t.Helper()
	h := NewHostCollector(time.Second)
	h.ProcDir = writeProc(t)
	h.ThermalPath = filepath.Join(t.TempDir(), "missing")
	h.Run = func(ctx context.Context, name string, args ...string) (string, error) {
		return "temp=51.0'C", nil
	}
	h.Hostname = func() (string, error) { return "relaypi", nil }
	h.Addrs = func() ([]net.Addr, error) {
		return []net.Addr{&net.IPNet{IP: net.ParseIP("192.168.1.50"), Mask: net.CIDRMask(24, 32)}}, nil
	}
	return h
}

func TestHostCollectorSystemInfo(t *testing.T) {
	h := newTestCollector(t)

	info, err := h.SystemInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SystemInfo{
		Hardware:    "BCM2835",
		Uptime:      "01:02",
		Load:        "0.52/0.58/0.59",
		FreeMemory:  "51200 kB",
		Temperature: "51.0'C",
	}
	if info != want {
		t.Errorf("got %+v, want %+v", info, want)
	}
}

func TestHostCollectorTemperatureFallback(t *testing.T) {
	h := newTestCollector(t)
	h.Run = func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("vcgencmd: not found")
	}
	h.ThermalPath = filepath.Join(t.TempDir(), "temp")
	os.WriteFile(h.ThermalPath, []byte("47000\n"), 0o644)

	info, err := h.SystemInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Temperature != "47.0'C" {
		t.Errorf("Temperature: got %q", info.Temperature)
	}
}

func TestHostCollectorFallbackValues(t *testing.T) {
	h := newTestCollector(t)
	h.ProcDir = t.TempDir() // empty: every /proc read fails
	h.Run = func(ctx context.Context, name string, args ...string) (string, error) {
		return "", ErrNoOutput
	}

	info, err := h.SystemInfo(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	for name, v := range map[string]string{
		"hardware": info.Hardware, "uptime": info.Uptime, "load": info.Load,
		"memory": info.FreeMemory, "temperature": info.Temperature,
	} {
		if v != Unavailable {
			t.Errorf("%s: got %q, want %q", name, v, Unavailable)
		}
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestHostCollectorNetworkInfo(t *testing.T) {
	h := newTestCollector(t)
	h.Resolver = startDNS(t, "203.0.113.7")

	info, err := h.NetworkInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := NetworkInfo{Hostname: "relaypi", LocalIP: "192.168.1.50", PublicIP: "203.0.113.7"}
	if info != want {
		t.Errorf("got %+v, want %+v", info, want)
	}
}

func TestHostCollectorNetworkInfoNoAnswer(t *testing.T) {
	h := newTestCollector(t)
	h.Resolver = startDNS(t, "")
	h.Addrs = func() ([]net.Addr, error) { return nil, nil }

	info, err := h.NetworkInfo(context.Background())
	if !errors.Is(err, ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
	if info.Hostname != "relaypi" {
		t.Errorf("Hostname: got %q", info.Hostname)
	}
	if info.LocalIP != Unavailable || info.PublicIP != Unavailable {
		t.Errorf("expected unavailable addresses, got %+v", info)
	}
}

func TestRunCommandBounded(t *testing.T) {
	out, err := RunCommand(context.Background(), "sh", "-c", "printf '%0300d\\n' 0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != MaxCommandOutput {
		t.Errorf("expected %d bytes, got %d", MaxCommandOutput, len(out))
	}
}

func TestRunCommandFirstLine(t *testing.T) {
	out, err := RunCommand(context.Background(), "sh", "-c", "echo '  relaypi  '; echo second")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "relaypi" {
		t.Errorf("got %q", out)
	}
}

func TestRunCommandNoOutput(t *testing.T) {
	_, err := RunCommand(context.Background(), "true")
	if !errors.Is(err, ErrNoOutput) {
		t.Errorf("expected ErrNoOutput, got %v", err)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := RunCommand(ctx, "sleep", "5")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRunCommandBackgroundChildHoldsStdout(t *testing.T) {
	old := CommandWaitDelay
	CommandWaitDelay = 100 * time.Millisecond
	defer func() { CommandWaitDelay = old }()

	start := time.Now()
	out, err := RunCommand(context.Background(), "sh", "-c", "echo 42; sleep 5 &")
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if out != "42" {
		t.Errorf("got %q, want 42", out)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("RunCommand waited %v for a background child", elapsed)
	}
}

func TestFakeCollector(t *testing.T) {
	f := NewFakeCollector()
	f.NetworkError = errors.New("no route")

	if _, err := f.SystemInfo(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := f.NetworkInfo(context.Background()); err == nil {
		t.Error("expected scripted error")
	}
	if f.SystemCalls != 1 || f.NetworkCalls != 1 {
		t.Errorf("calls: system=%d network=%d", f.SystemCalls, f.NetworkCalls)
	}
}
