package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/pmicmon/internal/core/doctor"
	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/core/power"
	"github.com/colonyops/pmicmon/internal/core/styles"
	"github.com/colonyops/pmicmon/internal/core/suppress"
	"github.com/colonyops/pmicmon/pkg/iojson"
)

const serviceCheckTimeout = 5 * time.Second

type DoctorCmd struct {
	flags  *Flags
	format string
}

// NewDoctorCmd creates a new doctor command.
func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

// Register adds the doctor command to the application.
func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your pmicmon setup",
		UsageText:   "pmicmon doctor [options]",
		Description: "Runs diagnostic checks on the session, platform, notification service, configuration and markers.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) checks() []doctor.Check {
	cfg := cmd.flags.config()
	exec := newExecutor()

	dial := func(ctx context.Context) (notify.Transport, error) {
		ctx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
		defer cancel()
		return dialNotifications(ctx)
	}

	return []doctor.Check{
		doctor.NewConfigCheck(cfg, cmd.flags.ConfigPath),
		doctor.NewSessionCheck(getenv),
		doctor.NewPlatformCheck(power.NewStatusReader(cfg.Power.StatusDir), cfg.Power.MinCurrentMA),
		doctor.NewServiceCheck(dial),
		doctor.NewToolsCheck(cfg.BrowserCommand, exec),
		doctor.NewMarkersCheck(suppress.FromEnv(getenv)),
	}
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	switch cmd.format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: must be text or json", cmd.format)
	}

	results := doctor.RunAll(ctx, cmd.checks())
	_, _, failed := doctor.Summary(results)

	var err error
	if cmd.format == "json" {
		err = cmd.outputJSON(c, results)
	} else {
		err = cmd.outputText(c.Root().ErrWriter, results)
	}
	if err != nil {
		return err
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: failed == 0,
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed},
		Checks:  results,
	}

	return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, out)
}

type summaryJSON struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
}

func (cmd *DoctorCmd) outputText(w io.Writer, results []doctor.Result) error {
	divider := styles.TextMutedStyle.Render(strings.Repeat("─", 40))

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, styles.TextPrimaryBoldStyle.Render("pmicmon doctor"))
	_, _ = fmt.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	for _, result := range results {
		_, _ = fmt.Fprintln(w, styles.TextForegroundBoldStyle.Render(result.Name))

		for _, item := range result.Items {
			var detail string
			if item.Detail != "" {
				detail = " " + styles.TextMutedStyle.Render(item.Detail)
			}

			var icon string
			switch item.Status {
			case doctor.StatusPass:
				icon = styles.TextSuccessStyle.Render("✔")
			case doctor.StatusWarn:
				icon = styles.TextWarningStyle.Render("●")
			case doctor.StatusFail:
				icon = styles.TextErrorStyle.Render("✘")
			}

			_, _ = fmt.Fprintf(w, "  %s %s%s\n", icon, item.Label, detail)
		}

		_, _ = fmt.Fprintln(w)
	}

	passed, warned, failed := doctor.Summary(results)
	_, err := fmt.Fprintf(w, "%s  %s  %s\n",
		styles.TextSuccessStyle.Render(fmt.Sprintf("%d passed", passed)),
		styles.TextWarningStyle.Render(fmt.Sprintf("%d warnings", warned)),
		styles.TextErrorStyle.Render(fmt.Sprintf("%d failed", failed)),
	)
	return err
}
