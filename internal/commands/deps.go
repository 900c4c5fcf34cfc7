package commands

import (
	"context"
	"os"

	"github.com/colonyops/pmicmon/internal/core/device"
	"github.com/colonyops/pmicmon/internal/core/logging"
	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/integration/dbusnotify"
	"github.com/colonyops/pmicmon/internal/integration/udev"
	"github.com/colonyops/pmicmon/pkg/executil"
)

// Package-level variables to allow test overrides.
var (
	getenv = os.Getenv

	dialNotifications = func(ctx context.Context) (notify.Transport, error) {
		t, err := dbusnotify.Dial(ctx, logging.Component("dbus"))
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	newDeviceSource = func(sysfsRoot string) device.Source {
		return udev.NewSource(sysfsRoot, logging.Component("udev"))
	}

	newExecutor = func() executil.Executor {
		return &executil.RealExecutor{}
	}
)
