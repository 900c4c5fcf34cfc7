package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/pmicmon/internal/core/logging"
	"github.com/colonyops/pmicmon/internal/core/suppress"
	"github.com/colonyops/pmicmon/internal/notifier"
)

// runFlow runs flow under a notifier engine wired to the session bus and
// udev until the flow quits or the process is signalled.
func runFlow(ctx context.Context, flags *Flags, flow notifier.Flow) error {
	cfg := flags.config()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := notifier.New(flow, notifier.Options{
		Config:   cfg,
		Dial:     dialNotifications,
		Source:   newDeviceSource(cfg.Monitor.SysfsRoot),
		Store:    suppress.FromEnv(getenv),
		Executor: newExecutor(),
		Logger:   logging.Component("notifier"),
		Getenv:   getenv,
	})

	err := engine.Run(ctx)
	if errors.Is(err, notifier.ErrNoGraphicalSession) {
		return cli.Exit("Missing DISPLAY / WAYLAND_DISPLAY", 1)
	}
	return err
}
