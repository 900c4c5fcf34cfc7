package commands

import (
	"context"

	"github.com/urfave/cli/v3"
)

// lenientCommands must run even when logging or config setup fails.
var lenientCommands = map[string]bool{
	"check": true,
}

// NewRoot builds the pmicmon command tree with its global flags bound to
// flags. The Before hook sets up logging and loads the config.
func NewRoot(flags *Flags, version string) *cli.Command {
	var logCloser func()

	app := &cli.Command{
		Name:      "pmicmon",
		Usage:     "Report Raspberry Pi 5 power supply problems",
		UsageText: "pmicmon [global options] command [command options]",
		Description: `pmicmon tells the user when the Raspberry Pi 5 was reset by a brownout,
when the power supply cannot deliver 5A, and when undervoltage or USB
overcurrent events occur at runtime.

Run 'pmicmon check' from update-motd for console warnings.
Run 'pmicmon reset' and 'pmicmon monitor' from the desktop session autostart.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("PMICMON_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (empty logs to stderr)",
				Sources:     cli.EnvVars("PMICMON_LOG_FILE"),
				Value:       DefaultLogFile(),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("PMICMON_CONFIG"),
				Value:       DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			closer, err := flags.Setup(lenientCommands[c.Args().First()])
			if err != nil {
				return ctx, err
			}
			logCloser = closer
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = NewCheckCmd(flags).Register(app)
	app = NewResetCmd(flags).Register(app)
	app = NewMonitorCmd(flags).Register(app)
	app = NewDoctorCmd(flags).Register(app)
	app = NewSuppressCmd(flags).Register(app)

	return app
}
