// Command relayd drives a PiFace Relay+ board and bridges it to MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/piface-relay/internal/bus"
	"github.com/sweeney/piface-relay/internal/config"
	"github.com/sweeney/piface-relay/internal/device"
	"github.com/sweeney/piface-relay/internal/gpio"
	"github.com/sweeney/piface-relay/internal/logic"
	"github.com/sweeney/piface-relay/internal/mqtt"
	"github.com/sweeney/piface-relay/internal/power"
	"github.com/sweeney/piface-relay/internal/relay"
	"github.com/sweeney/piface-relay/internal/status"
	"github.com/sweeney/piface-relay/internal/store"
	"github.com/sweeney/piface-relay/internal/telemetry"
	"github.com/sweeney/piface-relay/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are used when empty)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	busKind := flag.String("bus", "", "expander bus: spi, i2c or fake (overrides config)")
	printState := flag.Bool("print-state", false, "Print current relay states and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyFlags(cfg, *broker, *httpAddr, *busKind)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyFlags overrides config values with the non-empty flags.
func applyFlags(cfg *config.Config, broker, httpAddr, busKind string) {
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = httpAddr
	}
	if busKind != "" {
		cfg.Bus.Kind = busKind
	}
}

func busConfig(cfg *config.Config) bus.Config {
	return bus.Config{
		Kind:    cfg.Bus.Kind,
		Device:  cfg.Bus.Device,
		Address: cfg.Bus.Address,
		SpeedHz: cfg.Bus.SpeedHz,
	}
}

func run(cfg *config.Config, printState bool) error {
	if printState {
		return printRelays(busConfig(cfg))
	}

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		Prefix:     cfg.MQTT.TopicPrefix,
		Device:     cfg.Device.Name,
		BufferSize: cfg.MQTT.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	var indicator gpio.Indicator = gpio.NopIndicator{}
	if cfg.Indicator.Pin >= 0 {
		led, err := gpio.NewLED(cfg.Indicator.Chip, cfg.Indicator.Pin)
		if err != nil {
			return fmt.Errorf("init indicator: %w", err)
		}
		defer led.Close()
		indicator = led
	}

	collector := telemetry.NewHostCollector(cfg.Telemetry.Timeout)
	collector.Resolver = cfg.Telemetry.Resolver
	collector.PublicName = cfg.Telemetry.PublicName

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Device:       cfg.Device.Name,
		Bus:          cfg.Bus.Kind,
		TickMs:       cfg.Schedule.Tick.Milliseconds(),
		ArmTimeoutMs: cfg.Schedule.ArmTimeout.Milliseconds(),
		Broker:       cfg.MQTT.Broker,
		TopicPrefix:  cfg.MQTT.TopicPrefix,
		HTTPAddr:     cfg.HTTP.Addr,
	})

	busCfg := busConfig(cfg)
	dev, err := device.New(device.Deps{
		Name:      cfg.Device.Name,
		Open:      func() (bus.Bus, error) { return bus.Open(busCfg) },
		Collector: collector,
		Publisher: publisher,
		Link:      publisher,
		Power: &power.CommandExecutor{
			ShutdownCommand: cfg.Power.ShutdownCommand,
			RestartCommand:  cfg.Power.RestartCommand,
			Timeout:         cfg.Power.Timeout,
		},
		Indicator:  indicator,
		Store:      store.New(cfg.State.Path),
		Tracker:    tracker,
		ArmTimeout: cfg.Schedule.ArmTimeout,
		Restore:    cfg.State.Restore,
	})
	if err != nil {
		return err
	}

	requests := make(chan device.Request)
	client := device.NewClient(requests, 0)
	forwardCtx, stopForward := context.WithCancel(context.Background())
	defer stopForward()
	go client.Forward(forwardCtx)
	if err := publisher.SubscribeCommands(client.HandlePayload); err != nil {
		log.Printf("command subscription failed: %v", err)
	}

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, client)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: bus=%s tick=%v arm_timeout=%v broker=%s prefix=%s",
		cfg.Bus.Kind, cfg.Schedule.Tick, cfg.Schedule.ArmTimeout, cfg.MQTT.Broker, cfg.MQTT.TopicPrefix)

	ticker := time.NewTicker(cfg.Schedule.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(dev, publisher, publisher, tracker, cfg.Device.AutoConnect, time.Now, ticker.C, requests, sigCh)
}

// runLoop runs the device loop until a signal arrives, then disconnects the
// board and publishes the SHUTDOWN event.
func runLoop(dev *device.Device, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, autoConnect bool, now func() time.Time, tick <-chan time.Time, requests <-chan device.Request, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if autoConnect {
		if err := dev.Connect(ctx); err != nil {
			log.Printf("connect: %v", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- dev.Run(ctx, tick, requests) }()

	select {
	case s := <-sig:
		log.Printf("received %v, shutting down", s)
		cancel()
		<-done

		if err := dev.Close(); err != nil {
			log.Printf("disconnect: %v", err)
		}

		name := signalName(s)
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    name,
			Retained:  true,
		}
		if tracker != nil {
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", name)
		}
		if err := publisher.PublishSystem(event); err != nil {
			log.Printf("failed to publish shutdown event: %v", err)
		} else {
			log.Printf("published shutdown event")
		}
		return nil

	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("device loop: %w", err)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printRelays opens the bus, reads the relay register once and prints it.
func printRelays(cfg bus.Config) error {
	b, err := bus.Open(cfg)
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}
	defer b.Close()

	states, err := relay.NewController(b).States()
	if err != nil {
		return fmt.Errorf("read relays: %w", err)
	}
	fmt.Println(formatStates(states))
	return nil
}

func formatStates(states [relay.Count]bool) string {
	out := ""
	for i, on := range states {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("Relay %d: %s", i+1, logic.StateOf(on))
	}
	return out
}
