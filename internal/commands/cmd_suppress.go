package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/pmicmon/internal/core/logging"
	"github.com/colonyops/pmicmon/internal/core/power"
	"github.com/colonyops/pmicmon/internal/core/suppress"
	"github.com/colonyops/pmicmon/pkg/iojson"
)

type SuppressCmd struct {
	flags   *Flags
	jsonOut bool
}

// NewSuppressCmd creates a new suppress command.
func NewSuppressCmd(flags *Flags) *SuppressCmd {
	return &SuppressCmd{flags: flags}
}

// Register adds the suppress command and its subcommands to the application.
func (cmd *SuppressCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "suppress",
		Usage: "Manage \"don't show again\" markers",
		Description: fmt.Sprintf(`Markers silence a condition until they are removed. Markers in any
configuration directory on the XDG search path are honored; add and
clear only touch the user directory.

Conditions: %s`, conditionKeys()),
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List active markers",
				UsageText: "pmicmon suppress list [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOut,
					},
				},
				Action: cmd.runList,
			},
			{
				Name:      "add",
				Usage:     "Suppress a condition",
				UsageText: "pmicmon suppress add <condition>",
				Action:    cmd.runAdd,
			},
			{
				Name:      "clear",
				Usage:     "Remove the user marker for a condition",
				UsageText: "pmicmon suppress clear <condition>",
				Action:    cmd.runClear,
			},
		},
	})
	return app
}

func (cmd *SuppressCmd) runList(_ context.Context, c *cli.Command) error {
	markers := suppress.FromEnv(getenv).Markers()

	if cmd.jsonOut {
		if markers == nil {
			markers = []suppress.Marker{}
		}
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, markers)
	}

	w := c.Root().Writer
	if len(markers) == 0 {
		_, err := fmt.Fprintln(w, "no conditions suppressed")
		return err
	}
	for _, m := range markers {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", m.Key, m.Path); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *SuppressCmd) runAdd(ctx context.Context, c *cli.Command) error {
	cond, err := conditionArg(c)
	if err != nil {
		return err
	}

	store := suppress.FromEnv(getenv)
	if err := store.Suppress(cond); err != nil {
		return err
	}

	log := logging.Component("suppress")
	log.Info().Ctx(logging.WithCondition(ctx, cond.String())).Msg("condition suppressed")
	_, err = fmt.Fprintf(c.Root().Writer, "suppressed %s (%s)\n", cond, store.UserPath(cond))
	return err
}

func (cmd *SuppressCmd) runClear(ctx context.Context, c *cli.Command) error {
	cond, err := conditionArg(c)
	if err != nil {
		return err
	}

	store := suppress.FromEnv(getenv)
	if err := store.Clear(cond); err != nil {
		return err
	}

	log := logging.Component("suppress")
	log.Info().Ctx(logging.WithCondition(ctx, cond.String())).Msg("condition cleared")

	w := c.Root().Writer
	if store.IsSuppressed(cond) {
		_, err = fmt.Fprintf(w, "cleared user marker; %s is still suppressed by a system marker\n", cond)
		return err
	}
	_, err = fmt.Fprintf(w, "cleared %s\n", cond)
	return err
}

func conditionArg(c *cli.Command) (power.Condition, error) {
	if c.Args().Len() != 1 {
		return 0, fmt.Errorf("expected exactly one condition (%s)", conditionKeys())
	}
	return power.ParseCondition(c.Args().First())
}

func conditionKeys() string {
	keys := make([]string, 0, len(power.All()))
	for _, cond := range power.All() {
		keys = append(keys, cond.String())
	}
	return strings.Join(keys, ", ")
}
