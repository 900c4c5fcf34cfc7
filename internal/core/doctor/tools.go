package doctor

import (
	"context"
	"os/exec"
	"strings"

	"github.com/colonyops/pmicmon/pkg/executil"
)

// lookPathFunc is the function used to find executables on PATH.
// Package-level variable to allow test overrides.
var lookPathFunc = exec.LookPath

// ToolsCheck verifies that the browser used for "More information" can be
// launched.
type ToolsCheck struct {
	browser string
	exec    executil.Executor
}

// NewToolsCheck creates a new tools check for the configured browser
// command line.
func NewToolsCheck(browser string, exec executil.Executor) *ToolsCheck {
	return &ToolsCheck{browser: browser, exec: exec}
}

func (c *ToolsCheck) Name() string {
	return "Tools"
}

func (c *ToolsCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	cmd, _, err := executil.SplitCommand(c.browser)
	if err != nil {
		result.add("browser_command", StatusFail, "empty")
		return result
	}

	path, err := lookPathFunc(cmd)
	if err != nil {
		result.add(cmd, StatusWarn, "not found on PATH (More information cannot open a browser)")
		return result
	}
	result.add(cmd, StatusPass, path)

	// xdg-open defers to the desktop default; report which browser that is
	if cmd == "xdg-open" && c.exec != nil {
		out, err := c.exec.Run(ctx, "xdg-settings", "get", "default-web-browser")
		browser := strings.TrimSpace(string(out))
		switch {
		case err != nil:
			result.add("default browser", StatusWarn, "unknown (xdg-settings failed)")
		case browser == "":
			result.add("default browser", StatusWarn, "not set")
		default:
			result.add("default browser", StatusPass, browser)
		}
	}

	return result
}
