package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/pmicmon/internal/core/power"
	"github.com/colonyops/pmicmon/internal/notifier"
)

type ResetCmd struct {
	flags *Flags
}

// NewResetCmd creates a new reset command.
func NewResetCmd(flags *Flags) *ResetCmd {
	return &ResetCmd{flags: flags}
}

// Register adds the reset command to the application.
func (cmd *ResetCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "reset",
		Usage:     "Notify the desktop user about boot-time power problems",
		UsageText: "pmicmon reset",
		Description: `Waits for the desktop notification service, then shows a notification if
the last reset was caused by a brownout or the power supply did not
negotiate 5A. Exits once the notification is closed.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *ResetCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.config()
	flow := notifier.NewResetFlow(power.NewStatusReader(cfg.Power.StatusDir), cfg.Power.MinCurrentMA)
	return runFlow(ctx, cmd.flags, flow)
}
