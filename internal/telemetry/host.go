package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Read limits. Command output is capped at one short line.
const (
	MaxCommandOutput = 128
	MaxFileRead      = 64 << 10
)

// Defaults for HostCollector.
const (
	DefaultProcDir     = "/proc"
	DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"
	DefaultResolver    = "resolver1.opendns.com:53"
	DefaultPublicName  = "myip.opendns.com"
	DefaultTimeout     = 3 * time.Second
)

// Runner runs an external command and returns its bounded output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// HostCollector reads telemetry from the local host.
type HostCollector struct {
	ProcDir     string
	ThermalPath string
	Resolver    string // host:port of the DNS server answering PublicName
	PublicName  string
	Timeout     time.Duration

	Run      Runner
	Hostname func() (string, error)
	Addrs    func() ([]net.Addr, error)
}

// NewHostCollector returns a HostCollector with the default sources.
func NewHostCollector(timeout time.Duration) *HostCollector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HostCollector{
		ProcDir:     DefaultProcDir,
		ThermalPath: DefaultThermalPath,
		Resolver:    DefaultResolver,
		PublicName:  DefaultPublicName,
		Timeout:     timeout,
		Run:         RunCommand,
		Hostname:    os.Hostname,
		Addrs:       net.InterfaceAddrs,
	}
}

// SystemInfo reads hardware, uptime, load, free memory and temperature.
func (h *HostCollector) SystemInfo(ctx context.Context) (SystemInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	var info SystemInfo
	errs := []error{
		field(&info.Hardware, "hardware", func() (string, error) {
			return h.readParsed("cpuinfo", parseHardware)
		}),
		field(&info.Uptime, "uptime", func() (string, error) {
			return h.readParsed("uptime", parseUptime)
		}),
		field(&info.Load, "load", func() (string, error) {
			return h.readParsed("loadavg", parseLoadAvg)
		}),
		field(&info.FreeMemory, "memory", func() (string, error) {
			return h.readParsed("meminfo", parseMemFree)
		}),
		field(&info.Temperature, "temperature", func() (string, error) {
			return h.temperature(ctx)
		}),
	}
	return info, errors.Join(errs...)
}

// NetworkInfo reads hostname, local addresses and the public address.
func (h *HostCollector) NetworkInfo(ctx context.Context) (NetworkInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	var info NetworkInfo
	errs := []error{
		field(&info.Hostname, "hostname", h.Hostname),
		field(&info.LocalIP, "local ip", func() (string, error) {
			addrs, err := h.Addrs()
			if err != nil {
				return "", err
			}
			return localIPv4(addrs), nil
		}),
		field(&info.PublicIP, "public ip", func() (string, error) {
			return h.publicIP(ctx)
		}),
	}
	return info, errors.Join(errs...)
}

func (h *HostCollector) readParsed(name string, parse func([]byte) (string, error)) (string, error) {
	data, err := readBounded(filepath.Join(h.ProcDir, name))
	if err != nil {
		return "", err
	}
	return parse(data)
}

// temperature prefers vcgencmd and falls back to the thermal zone.
func (h *HostCollector) temperature(ctx context.Context) (string, error) {
	out, err := h.Run(ctx, "vcgencmd", "measure_temp")
	if err == nil {
		if t, perr := parseVcgencmd(out); perr == nil {
			return t, nil
		}
	}
	data, ferr := readBounded(h.ThermalPath)
	if ferr != nil {
		if err != nil {
			return "", fmt.Errorf("vcgencmd: %v; thermal zone: %w", err, ferr)
		}
		return "", ferr
	}
	return parseThermal(data)
}

func (h *HostCollector) publicIP(ctx context.Context) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(h.PublicName), dns.TypeA)

	c := &dns.Client{Timeout: h.Timeout}
	in, _, err := c.ExchangeContext(ctx, m, h.Resolver)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", h.Resolver, err)
	}
	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", ErrNoOutput
}

// CommandWaitDelay bounds how long RunCommand waits for the command's
// stdout to close once it has exited or its context is done. A child that
// leaves a background process holding stdout would otherwise stall Wait.
var CommandWaitDelay = 500 * time.Millisecond

// limitedBuffer keeps the first max bytes written and discards the rest,
// so the command never blocks on a full pipe.
type limitedBuffer struct {
	buf []byte
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if n := b.max - len(b.buf); n > 0 {
		if len(p) < n {
			n = len(p)
		}
		b.buf = append(b.buf, p[:n]...)
	}
	return len(p), nil
}

// RunCommand runs name with args and returns the first line of stdout,
// keeping at most MaxCommandOutput bytes.
func RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	out := &limitedBuffer{max: MaxCommandOutput}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.WaitDelay = CommandWaitDelay

	err := cmd.Run()
	if ctx.Err() != nil {
		return "", fmt.Errorf("%s: %w", name, ctx.Err())
	}
	// ErrWaitDelay means the command itself succeeded.
	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	line := firstLine(out.buf)
	if line == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNoOutput)
	}
	return line, nil
}

func readBounded(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxFileRead))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoOutput)
	}
	return data, nil
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

// parseHardware returns the "Hardware" line of cpuinfo, or "Model" on
// kernels that no longer report Hardware.
func parseHardware(data []byte) (string, error) {
	var model string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Hardware":
			if v := strings.TrimSpace(value); v != "" {
				return v, nil
			}
		case "Model":
			model = strings.TrimSpace(value)
		}
	}
	if model != "" {
		return model, nil
	}
	return "", ErrNoOutput
}

// parseUptime formats /proc/uptime as "[N day(s), ]hh:mm".
func parseUptime(data []byte) (string, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", ErrNoOutput
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return "", fmt.Errorf("parse uptime %q: %w", fields[0], err)
	}
	return FormatUptime(time.Duration(secs * float64(time.Second))), nil
}

// FormatUptime renders d as "hh:mm", prefixed with the day count when
// d is a day or longer.
func FormatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	hm := fmt.Sprintf("%02d:%02d", h, m)
	switch {
	case days == 1:
		return "1 day, " + hm
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, hm)
	}
	return hm
}

// parseLoadAvg returns the 1/5/15 minute load averages.
func parseLoadAvg(data []byte) (string, error) {
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return "", fmt.Errorf("parse loadavg: %w", ErrNoOutput)
	}
	return strings.Join(fields[:3], "/"), nil
}

// parseMemFree returns the MemFree value of meminfo, e.g. "123456 kB".
func parseMemFree(data []byte) (string, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if ok && key == "MemFree" {
			return strings.TrimSpace(value), nil
		}
	}
	return "", ErrNoOutput
}

// parseVcgencmd extracts the value of "temp=48.3'C".
func parseVcgencmd(out string) (string, error) {
	_, value, ok := strings.Cut(strings.TrimSpace(out), "=")
	if !ok || value == "" {
		return "", fmt.Errorf("parse vcgencmd %q: %w", out, ErrNoOutput)
	}
	return value, nil
}

// parseThermal converts a millidegree thermal zone reading to "48.3'C".
func parseThermal(data []byte) (string, error) {
	s := strings.TrimSpace(string(data))
	milli, err := strconv.Atoi(s)
	if err != nil {
		return "", fmt.Errorf("parse thermal zone %q: %w", s, err)
	}
	return fmt.Sprintf("%.1f'C", float64(milli)/1000.0), nil
}

// localIPv4 returns the non-loopback IPv4 addresses, space separated.
func localIPv4(addrs []net.Addr) string {
	var out []string
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		out = append(out, ip.String())
	}
	return strings.Join(out, " ")
}
