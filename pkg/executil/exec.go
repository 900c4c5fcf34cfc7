// Package executil provides process execution utilities.
package executil

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor runs external commands.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// Start launches a command without waiting for it to exit. The process
	// outlives ctx.
	Start(ctx context.Context, cmd string, args ...string) error
}

// RealExecutor calls actual commands.
type RealExecutor struct{}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s: %w", cmd, err)
	}
	return out, nil
}

// Start launches a command in the background and reaps it when it exits.
func (e *RealExecutor) Start(_ context.Context, cmd string, args ...string) error {
	c := exec.Command(cmd, args...)
	if err := c.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cmd, err)
	}
	go func() { _ = c.Wait() }()
	return nil
}

// SplitCommand splits a configured command line such as "firefox --new-window"
// into the program and its leading arguments.
func SplitCommand(line string) (string, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	return fields[0], fields[1:], nil
}
