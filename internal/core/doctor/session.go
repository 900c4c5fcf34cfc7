package doctor

import (
	"context"
)

// SessionCheck verifies the environment of a graphical session.
type SessionCheck struct {
	getenv func(string) string
}

// NewSessionCheck creates a session check reading the environment through
// getenv.
func NewSessionCheck(getenv func(string) string) *SessionCheck {
	return &SessionCheck{getenv: getenv}
}

func (c *SessionCheck) Name() string {
	return "Graphical Session"
}

func (c *SessionCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	display := c.getenv("DISPLAY")
	wayland := c.getenv("WAYLAND_DISPLAY")

	switch {
	case wayland != "":
		result.add("WAYLAND_DISPLAY", StatusPass, wayland)
	case display != "":
		result.add("DISPLAY", StatusPass, display)
	default:
		result.add("display", StatusFail, "neither DISPLAY nor WAYLAND_DISPLAY is set; reset and monitor will exit")
	}

	if bus := c.getenv("DBUS_SESSION_BUS_ADDRESS"); bus != "" {
		result.add("session bus", StatusPass, bus)
	} else {
		result.add("session bus", StatusWarn, "DBUS_SESSION_BUS_ADDRESS is not set; relying on autolaunch")
	}

	return result
}
