// Package power halts or restarts the host.
package power

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrFailed wraps any failure to run the shutdown or restart command.
var ErrFailed = errors.New("power: command failed")

// Default commands, run through exec without a shell.
var (
	DefaultShutdownCommand = []string{"sudo", "shutdown", "-h", "now"}
	DefaultRestartCommand  = []string{"sudo", "shutdown", "-r", "now"}
)

// Executor halts or restarts the host.
type Executor interface {
	Shutdown(ctx context.Context) error
	Restart(ctx context.Context) error
}

// CommandExecutor runs the configured commands.
type CommandExecutor struct {
	ShutdownCommand []string
	RestartCommand  []string
	Timeout         time.Duration
}

// NewCommandExecutor returns an executor using the default commands.
func NewCommandExecutor() *CommandExecutor {
	return &CommandExecutor{
		ShutdownCommand: DefaultShutdownCommand,
		RestartCommand:  DefaultRestartCommand,
		Timeout:         10 * time.Second,
	}
}

// Shutdown halts the host.
func (e *CommandExecutor) Shutdown(ctx context.Context) error {
	return e.run(ctx, e.ShutdownCommand)
}

// Restart reboots the host.
func (e *CommandExecutor) Restart(ctx context.Context) error {
	return e.run(ctx, e.RestartCommand)
}

func (e *CommandExecutor) run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%w: no command configured", ErrFailed)
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%w: %s: %w (%s)", ErrFailed, strings.Join(argv, " "), err, msg)
		}
		return fmt.Errorf("%w: %s: %w", ErrFailed, strings.Join(argv, " "), err)
	}
	return nil
}
