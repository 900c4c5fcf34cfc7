package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/pmicmon/internal/notifier"
)

type MonitorCmd struct {
	flags *Flags
}

// NewMonitorCmd creates a new monitor command.
func NewMonitorCmd(flags *Flags) *MonitorCmd {
	return &MonitorCmd{flags: flags}
}

// Register adds the monitor command to the application.
func (cmd *MonitorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "monitor",
		Usage:     "Notify the desktop user about undervoltage and USB overcurrent",
		UsageText: "pmicmon monitor",
		Description: `Watches kernel device events for undervoltage alarms and USB overcurrent
reports and shows a desktop notification for each new occurrence. Runs
until both conditions are suppressed or the process is stopped.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *MonitorCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.config()
	flow := notifier.NewMonitorFlow(cfg.Monitor.UndervoltSensor, cfg.Monitor.UndervoltAlarm)
	return runFlow(ctx, cmd.flags, flow)
}
