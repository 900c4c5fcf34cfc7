package commands

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/pmicmon/internal/core/config"
	"github.com/colonyops/pmicmon/internal/core/device"
	"github.com/colonyops/pmicmon/internal/core/device/devicetest"
	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/core/notify/notifytest"
	"github.com/colonyops/pmicmon/pkg/executil"
)

type testEnv struct {
	flags     *Flags
	env       map[string]string
	statusDir string
	userDir   string
	transport *notifytest.Transport
	source    *devicetest.Source
	exec      *executil.RecordingExecutor
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	te := &testEnv{
		env:       map[string]string{},
		statusDir: t.TempDir(),
		userDir:   t.TempDir(),
		transport: notifytest.New(notify.CapActions, "body"),
		exec:      &executil.RecordingExecutor{},
		stdout:    &bytes.Buffer{},
		stderr:    &bytes.Buffer{},
	}
	te.env["XDG_CONFIG_HOME"] = te.userDir
	te.env["XDG_CONFIG_DIRS"] = t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Power.StatusDir = te.statusDir
	cfg.Monitor.SysfsRoot = t.TempDir()
	cfg.BrowserCommand = "sh"
	te.flags = &Flags{Config: &cfg}

	origEnv, origDial, origExec, origSource := getenv, dialNotifications, newExecutor, newDeviceSource
	t.Cleanup(func() {
		getenv, dialNotifications, newExecutor, newDeviceSource = origEnv, origDial, origExec, origSource
	})
	te.source = devicetest.New()
	newDeviceSource = func(string) device.Source { return te.source }
	getenv = func(key string) string { return te.env[key] }
	dialNotifications = func(context.Context) (notify.Transport, error) { return te.transport, nil }
	newExecutor = func() executil.Executor { return te.exec }

	return te
}

func (te *testEnv) writeCell(t *testing.T, name string, value uint32) {
	t.Helper()
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, value)
	require.NoError(t, os.WriteFile(filepath.Join(te.statusDir, name), buf, 0o644))
}

// app builds a root command the way main does, without the logging hooks.
func (te *testEnv) app() *cli.Command {
	app := &cli.Command{
		Name:      "pmicmon",
		Writer:    te.stdout,
		ErrWriter: te.stderr,
	}
	app = NewCheckCmd(te.flags).Register(app)
	app = NewSuppressCmd(te.flags).Register(app)
	return app
}

func (te *testEnv) run(t *testing.T, args ...string) error {
	t.Helper()
	return te.app().Run(context.Background(), append([]string{"pmicmon"}, args...))
}

// bareCommand is an unparsed root command for calling actions
// directly.
func (te *testEnv) bareCommand() *cli.Command {
	return &cli.Command{Name: "pmicmon", Writer: te.stdout, ErrWriter: te.stderr}
}
