package notifier

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/pmicmon/internal/core/config"
	"github.com/colonyops/pmicmon/internal/core/device"
	"github.com/colonyops/pmicmon/internal/core/device/devicetest"
	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/core/notify/notifytest"
	"github.com/colonyops/pmicmon/internal/core/power"
	"github.com/colonyops/pmicmon/internal/core/suppress"
	"github.com/colonyops/pmicmon/pkg/executil"
)

var fullCaps = []string{notify.CapActions, notify.CapBodyMarkup, notify.CapBodyHyperlinks}

type fixture struct {
	cfg       *config.Config
	transport *notifytest.Transport
	source    *devicetest.Source
	store     *suppress.Store
	userDir   string
	systemDir string
	exec      *executil.RecordingExecutor
	env       map[string]string

	mu    sync.Mutex
	dials int
	// dialErr, when set, decides the result of each dial attempt.
	dialErr func(attempt int) error
}

func newFixture(t *testing.T, caps ...string) *fixture {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Readiness.Interval = time.Millisecond
	cfg.Power.StatusDir = t.TempDir()
	cfg.Monitor.SysfsRoot = t.TempDir()

	userDir := t.TempDir()
	systemDir := t.TempDir()

	return &fixture{
		cfg:       &cfg,
		transport: notifytest.New(caps...),
		source:    devicetest.New(),
		store:     suppress.NewStore(userDir, []string{systemDir}),
		userDir:   userDir,
		systemDir: systemDir,
		exec:      &executil.RecordingExecutor{},
		env:       map[string]string{"WAYLAND_DISPLAY": "wayland-0"},
	}
}

func (fx *fixture) dial(ctx context.Context) (notify.Transport, error) {
	fx.mu.Lock()
	fx.dials++
	attempt := fx.dials
	fx.mu.Unlock()

	if fx.dialErr != nil {
		if err := fx.dialErr(attempt); err != nil {
			return nil, err
		}
	}
	return fx.transport, nil
}

func (fx *fixture) dialCount() int {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return fx.dials
}

func (fx *fixture) options() Options {
	return Options{
		Config:   fx.cfg,
		Dial:     fx.dial,
		Source:   fx.source,
		Store:    fx.store,
		Executor: fx.exec,
		Logger:   zerolog.Nop(),
		Getenv:   func(k string) string { return fx.env[k] },
	}
}

// engine builds an engine with the transport already attached, for calling
// flow callbacks directly without running the loop.
func (fx *fixture) engine(t *testing.T, flow Flow) *Engine {
	t.Helper()
	e := New(flow, fx.options())
	e.attach(context.Background(), fx.transport)
	t.Cleanup(func() {
		e.bus.Stop()
		e.shutdown()
	})
	return e
}

// run starts the engine loop in the background and returns a channel that
// receives Run's result.
func (fx *fixture) run(t *testing.T, ctx context.Context, flow Flow) (*Engine, <-chan error) {
	t.Helper()
	e := New(flow, fx.options())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	return e, done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
		return nil
	}
}

func (fx *fixture) writeStatus(t *testing.T, reset, maxCurrent uint32) {
	t.Helper()
	write := func(name string, v uint32) {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, v)
		require.NoError(t, os.WriteFile(filepath.Join(fx.cfg.Power.StatusDir, name), buf, 0o644))
	}
	write("power_reset", reset)
	write("max_current", maxCurrent)
}

func (fx *fixture) systemMarker(t *testing.T, c power.Condition) {
	t.Helper()
	dir := filepath.Join(fx.systemDir, suppress.Namespace)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, c.Marker()), nil, 0o644))
}

func usbEvent(action, port string, count string) device.Event {
	props := map[string]string{"SUBSYSTEM": "usb"}
	if port != "" {
		props["OVER_CURRENT_PORT"] = port
	}
	if count != "" {
		props["OVER_CURRENT_COUNT"] = count
	}
	return device.Event{
		Action:     action,
		Subsystem:  device.SubsystemUSB,
		DevPath:    "/devices/platform/axi/1000480000.usb/usb4/4-2",
		Properties: props,
	}
}

func hwmonEvent(action, name, alarm string) device.Event {
	attrs := device.Attributes{}
	if name != "" {
		attrs["name"] = name + "\n"
	}
	if alarm != "" {
		attrs["in0_lcrit_alarm"] = alarm + "\n"
	}
	return device.Event{
		Action:     action,
		Subsystem:  device.SubsystemHwmon,
		DevPath:    "/devices/platform/soc/rpi_volt/hwmon/hwmon1",
		Properties: map[string]string{"SUBSYSTEM": "hwmon"},
		Attributes: attrs,
	}
}

type stubFlow struct {
	ready   int
	onReady  func(ctx context.Context, e *Engine) error
	onClosed func(e *Engine)
	closed   []uint32
	actions  []string
}

func (f *stubFlow) Name() string { return "stub" }

func (f *stubFlow) OnReady(ctx context.Context, e *Engine) error {
	f.ready++
	if f.onReady != nil {
		return f.onReady(ctx, e)
	}
	return nil
}

func (f *stubFlow) OnClosed(_ context.Context, e *Engine, id uint32, _ notify.CloseReason) {
	f.closed = append(f.closed, id)
	if f.onClosed != nil {
		f.onClosed(e)
	}
}

func (f *stubFlow) OnAction(_ context.Context, _ *Engine, _ uint32, action string) {
	f.actions = append(f.actions, action)
}
