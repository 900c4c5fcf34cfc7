package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/muesli/reflow/wordwrap"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/pmicmon/internal/core/logging"
	"github.com/colonyops/pmicmon/internal/core/power"
	"github.com/colonyops/pmicmon/internal/core/suppress"
	"github.com/colonyops/pmicmon/internal/notifier"
)

const defaultWrapWidth = 70

type CheckCmd struct {
	flags *Flags
}

// NewCheckCmd creates a new check command.
func NewCheckCmd(flags *Flags) *CheckCmd {
	return &CheckCmd{flags: flags}
}

// Register adds the check command to the application.
func (cmd *CheckCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "check",
		Usage:     "Report boot-time power problems on the console",
		UsageText: "pmicmon check",
		Description: `Checks the Raspberry Pi 5's power status and reports if the last reset
occurred due to a brownout, or if the current power supply failed to
negotiate a 5A supply. Intended to run from update-motd; prints nothing
when there is nothing to report and always exits 0.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *CheckCmd) run(ctx context.Context, c *cli.Command) error {
	log := logging.Component("check")
	cfg := cmd.flags.config()

	store := suppress.FromEnv(getenv)
	reader := power.NewStatusReader(cfg.Power.StatusDir)

	cond, ok, err := notifier.BootCondition(reader, store.IsSuppressed, cfg.Power.MinCurrentMA)
	if err != nil {
		log.Debug().Ctx(ctx).Err(err).Msg("power status unreadable; nothing to report")
		return nil
	}
	if !ok {
		return nil
	}

	ctx = logging.WithCondition(ctx, cond.String())
	log.Info().Ctx(ctx).Msg("reporting boot condition")

	if err := writeReport(c.Root().Writer, wrapWidth(c.Root().Writer), cond, cfg.ReferenceURL); err != nil {
		log.Debug().Ctx(ctx).Err(err).Msg("cannot write report")
	}
	return nil
}

func writeReport(w io.Writer, width int, cond power.Condition, url string) error {
	footer := fmt.Sprintf(
		"Run 'pmicmon suppress add %s' to stop this warning, or see %s for more information on the Raspberry Pi 5 power supply",
		cond, url,
	)

	_, err := fmt.Fprintf(w, "\n%s\n\n%s\n",
		wordwrap.String(cond.Message(), width),
		wordwrap.String(footer, width),
	)
	return err
}

// wrapWidth narrows the default width on small terminals.
func wrapWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWrapWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 || width >= defaultWrapWidth {
		return defaultWrapWidth
	}
	return width
}
