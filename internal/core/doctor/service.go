package doctor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/colonyops/pmicmon/internal/core/notify"
)

// Dialer connects to the notification service.
type Dialer func(ctx context.Context) (notify.Transport, error)

// ServiceCheck verifies that the desktop notification service answers and
// reports how notifications will be rendered.
type ServiceCheck struct {
	dial Dialer
}

// NewServiceCheck creates a notification service check.
func NewServiceCheck(dial Dialer) *ServiceCheck {
	return &ServiceCheck{dial: dial}
}

func (c *ServiceCheck) Name() string {
	return "Notification Service"
}

func (c *ServiceCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	transport, err := c.dial(ctx)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, notify.ErrServiceUnavailable) {
			detail = "org.freedesktop.Notifications is not running"
		}
		result.add("service", StatusFail, detail)
		return result
	}

	channel := notify.NewChannel(transport)
	defer func() { _ = channel.Close() }()

	info, err := channel.ServerInfo(ctx)
	if err != nil {
		result.add("service", StatusFail, err.Error())
		return result
	}
	result.add("service", StatusPass, fmt.Sprintf("%s %s (%s, protocol %s)", info.Name, info.Version, info.Vendor, info.SpecVersion))

	caps, err := channel.Capabilities(ctx)
	if err != nil {
		result.add("capabilities", StatusFail, err.Error())
		return result
	}
	result.add("capabilities", StatusPass, strings.Join(caps.List(), ", "))

	switch {
	case caps.Has(notify.CapActions):
		result.add("rendering", StatusPass, "action buttons")
	case caps.Has(notify.CapBodyHyperlinks):
		result.add("rendering", StatusWarn, "no action buttons; link in body, Don't show again unavailable")
	default:
		result.add("rendering", StatusWarn, "plain text; URL in body, Don't show again unavailable")
	}

	return result
}
