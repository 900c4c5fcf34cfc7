package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/pmicmon/internal/core/device"
	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/core/power"
)

func newMonitor(t *testing.T, fx *fixture) (*Engine, *MonitorFlow) {
	t.Helper()
	flow := NewMonitorFlow(fx.cfg.Monitor.UndervoltSensor, fx.cfg.Monitor.UndervoltAlarm)
	e := fx.engine(t, flow)
	require.NoError(t, flow.OnReady(context.Background(), e))
	return e, flow
}

func TestMonitorFlow_ArmsBothSubsystems(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)

	assert.Equal(t, 2, fx.source.Count())
	assert.True(t, e.Watching(device.SubsystemUSB))
	assert.True(t, e.Watching(device.SubsystemHwmon))
	assert.True(t, flow.Watching(power.Undervoltage))
	assert.True(t, flow.Watching(power.Overcurrent))
	assert.False(t, e.bus.Stopped())
}

func TestMonitorFlow_SkipsSuppressedCategory(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	fx.systemMarker(t, power.Undervoltage)

	e, flow := newMonitor(t, fx)

	assert.Equal(t, 1, fx.source.Count())
	assert.NotNil(t, fx.source.Get(device.SubsystemUSB))
	assert.Nil(t, fx.source.Get(device.SubsystemHwmon))
	assert.False(t, flow.Watching(power.Undervoltage))
	assert.False(t, e.bus.Stopped())
}

func TestMonitorFlow_BothSuppressedQuits(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	fx.systemMarker(t, power.Undervoltage)
	require.NoError(t, fx.store.Suppress(power.Overcurrent))

	e, _ := newMonitor(t, fx)

	assert.Equal(t, 0, fx.source.Count())
	assert.True(t, e.bus.Stopped())
}

func TestMonitorFlow_SubscribeErrorIsFatal(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	fx.source.Err = errors.New("netlink: operation not permitted")

	flow := NewMonitorFlow("rpi_volt", "in0_lcrit_alarm")
	e := fx.engine(t, flow)

	err := flow.OnReady(context.Background(), e)
	require.ErrorIs(t, err, fx.source.Err)
}

func TestMonitorFlow_OvercurrentDedup(t *testing.T) {
	tests := []struct {
		name      string
		seed      map[string]int64
		counts    []string
		close     bool
		wantSends int
	}{
		{name: "monotonic with closes", counts: []string{"1", "1", "2", "2", "3"}, close: true, wantSends: 3},
		{name: "seeded counter", seed: map[string]int64{"4-2-port1": 1}, counts: []string{"1", "1", "2", "2", "3"}, close: true, wantSends: 2},
		{name: "pending blocks repeats", counts: []string{"1", "1", "2", "2", "3"}, wantSends: 1},
		{name: "counter going backwards", counts: []string{"3", "2", "1"}, close: true, wantSends: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, fullCaps...)
			e, flow := newMonitor(t, fx)
			for port, n := range tt.seed {
				flow.counts[port] = n
			}
			ctx := context.Background()

			for _, count := range tt.counts {
				flow.onUSB(ctx, e, usbEvent(device.ActionChange, "4-2-port1", count))
				if tt.close {
					if id := flow.Pending(power.Overcurrent); id != 0 {
						e.Channel().HandleClosed(id, notify.ReasonDismissed)
					}
				}
			}

			assert.Equal(t, tt.wantSends, fx.transport.SentCount())
		})
	}
}

func TestMonitorFlow_OvercurrentPortsAreIndependent(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)
	ctx := context.Background()

	flow.onUSB(ctx, e, usbEvent(device.ActionChange, "1-1", "1"))
	e.Channel().HandleClosed(flow.Pending(power.Overcurrent), notify.ReasonExpired)
	flow.onUSB(ctx, e, usbEvent(device.ActionChange, "2-1", "1"))

	assert.Equal(t, 2, fx.transport.SentCount())
	assert.Equal(t, map[string]int64{"1-1": 1, "2-1": 1}, flow.counts)
}

func TestMonitorFlow_IgnoresIrrelevantUSBEvents(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)
	ctx := context.Background()

	flow.onUSB(ctx, e, usbEvent("add", "1-1", "1"))
	flow.onUSB(ctx, e, usbEvent(device.ActionChange, "", "1"))
	flow.onUSB(ctx, e, usbEvent(device.ActionChange, "1-1", ""))
	flow.onUSB(ctx, e, usbEvent(device.ActionChange, "1-1", "lots"))

	assert.Equal(t, 0, fx.transport.SentCount())
	assert.Empty(t, flow.counts)
}

func TestMonitorFlow_OvercurrentNotification(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)

	flow.onUSB(context.Background(), e, usbEvent(device.ActionChange, "1-1", "1"))

	n := fx.transport.Last()
	assert.Equal(t, "USB overcurrent; please check your connected USB devices", n.Body)
	assert.Equal(t, notify.UrgencyCritical, n.Urgency)
	assert.Equal(t, uint32(0), n.ReplacesID)
	assert.Equal(t, []notify.Action{
		{ID: "moreinfo", Label: "More information"},
		{ID: "suppress_overcurrent", Label: "Don't show again"},
	}, n.Actions)
	assert.Equal(t, uint32(1), flow.Pending(power.Overcurrent))
}

func TestMonitorFlow_Undervoltage(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)
	ctx := context.Background()

	flow.onHwmon(ctx, e, hwmonEvent("add", "rpi_volt", "1"))
	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "cpu_thermal", "1"))
	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "rpi_volt", "0"))
	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "rpi_volt", ""))
	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "", "1"))
	require.Equal(t, 0, fx.transport.SentCount())

	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "rpi_volt", "1"))
	require.Equal(t, 1, fx.transport.SentCount())

	n := fx.transport.Last()
	assert.Equal(t, "Low voltage warning; please check your power supply", n.Body)
	assert.Equal(t, notify.UrgencyCritical, n.Urgency)
	assert.Equal(t, "suppress_undervolt", n.Actions[1].ID)

	// still on screen
	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "rpi_volt", "1"))
	assert.Equal(t, 1, fx.transport.SentCount())

	// closing an unrelated notification changes nothing
	flow.OnClosed(ctx, e, 77, notify.ReasonDismissed)
	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "rpi_volt", "1"))
	assert.Equal(t, 1, fx.transport.SentCount())

	e.Channel().HandleClosed(flow.Pending(power.Undervoltage), notify.ReasonDismissed)
	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "rpi_volt", "1"))
	assert.Equal(t, 2, fx.transport.SentCount())
}

func TestMonitorFlow_CategoriesAreIndependent(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)
	ctx := context.Background()

	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "rpi_volt", "1"))
	flow.onUSB(ctx, e, usbEvent(device.ActionChange, "1-1", "1"))

	assert.Equal(t, 2, fx.transport.SentCount())
	assert.Equal(t, uint32(1), flow.Pending(power.Undervoltage))
	assert.Equal(t, uint32(2), flow.Pending(power.Overcurrent))

	e.Channel().HandleClosed(2, notify.ReasonDismissed)
	assert.Equal(t, uint32(1), flow.Pending(power.Undervoltage))
	assert.Equal(t, uint32(0), flow.Pending(power.Overcurrent))
}

func TestMonitorFlow_SuppressActions(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)
	ctx := context.Background()

	flow.onHwmon(ctx, e, hwmonEvent(device.ActionChange, "rpi_volt", "1"))
	id := flow.Pending(power.Undervoltage)
	require.NotZero(t, id)

	e.Channel().HandleAction(id, "suppress_undervolt")

	assert.True(t, fx.store.IsSuppressed(power.Undervoltage))
	assert.FileExists(t, fx.store.UserPath(power.Undervoltage))
	assert.False(t, flow.Watching(power.Undervoltage))
	assert.Equal(t, uint32(0), flow.Pending(power.Undervoltage))
	assert.False(t, e.Watching(device.SubsystemHwmon))
	assert.True(t, fx.source.Get(device.SubsystemHwmon).Closed())
	assert.False(t, e.bus.Stopped(), "overcurrent is still monitored")

	flow.onUSB(ctx, e, usbEvent(device.ActionChange, "1-1", "1"))
	e.Channel().HandleAction(flow.Pending(power.Overcurrent), "suppress_overcurrent")

	assert.True(t, fx.store.IsSuppressed(power.Overcurrent))
	assert.True(t, fx.source.Get(device.SubsystemUSB).Closed())
	assert.True(t, e.bus.Stopped())
}

func TestMonitorFlow_MoreInfoOpensBrowser(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	fx.cfg.BrowserCommand = "firefox --new-tab"
	e, flow := newMonitor(t, fx)

	flow.OnAction(context.Background(), e, 1, notify.ActionMoreInfo)

	rec := fx.exec.Recorded()
	require.Len(t, rec, 1)
	assert.Equal(t, "firefox", rec[0].Cmd)
	assert.Equal(t, []string{"--new-tab", "https://rptl.io/rpi5-power-supply-info"}, rec[0].Args)
	assert.True(t, flow.Watching(power.Undervoltage))
}

func TestMonitorFlow_MarkerCreatedElsewhere(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)
	require.NotNil(t, e.onMarker, "marker watch armed")

	ctx := context.Background()
	e.onMarker(ctx, power.BrownoutReset)
	assert.True(t, flow.Watching(power.Undervoltage))
	assert.True(t, flow.Watching(power.Overcurrent))

	flow.onUSB(ctx, e, usbEvent(device.ActionChange, "1-1", "1"))
	id := flow.Pending(power.Overcurrent)
	require.NotZero(t, id)

	e.onMarker(ctx, power.Overcurrent)
	assert.False(t, flow.Watching(power.Overcurrent))
	assert.Equal(t, []uint32{id}, fx.transport.Removed, "stale warning dismissed")
	assert.Equal(t, uint32(0), flow.Pending(power.Overcurrent))
	assert.True(t, fx.source.Get(device.SubsystemUSB).Closed())
	assert.False(t, fx.store.IsSuppressed(power.Overcurrent), "marker is only written by the user action")

	e.onMarker(ctx, power.Undervoltage)
	assert.True(t, e.bus.Stopped())
	assert.Len(t, fx.transport.Removed, 1, "nothing pending for undervoltage")
}

func TestMonitorFlow_NotifyErrorIsFatal(t *testing.T) {
	fx := newFixture(t, fullCaps...)
	e, flow := newMonitor(t, fx)
	boom := errors.New("GetCapabilities: connection reset")
	fx.transport.CapsErr = boom

	flow.onUSB(context.Background(), e, usbEvent(device.ActionChange, "1-1", "1"))

	require.ErrorIs(t, e.err, boom)
	assert.True(t, e.bus.Stopped())
}

func TestMonitorFlow_EndToEnd(t *testing.T) {
	fx := newFixture(t, notify.CapActions)

	_, done := fx.run(t, context.Background(), NewMonitorFlow("rpi_volt", "in0_lcrit_alarm"))

	require.Eventually(t, func() bool { return fx.source.Count() == 2 }, 5*time.Second, 5*time.Millisecond)

	usb := fx.source.Get(device.SubsystemUSB)
	hwmon := fx.source.Get(device.SubsystemHwmon)

	usb.Emit(usbEvent(device.ActionChange, "1-1", "1"))
	usb.Emit(usbEvent(device.ActionChange, "1-1", "2"))
	require.Eventually(t, func() bool { return fx.transport.SentCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	// signals and device events reach the loop from different goroutines, so
	// keep reporting until the close has been seen
	fx.transport.Emit(notify.Signal{Kind: notify.SignalClosed, ID: 1, Reason: notify.ReasonDismissed})
	require.Eventually(t, func() bool {
		usb.Emit(usbEvent(device.ActionChange, "1-1", "3"))
		return fx.transport.SentCount() == 2
	}, 5*time.Second, 5*time.Millisecond)

	hwmon.Emit(hwmonEvent(device.ActionChange, "rpi_volt", "1"))
	require.Eventually(t, func() bool { return fx.transport.SentCount() == 3 }, 5*time.Second, 5*time.Millisecond)

	fx.transport.Emit(notify.Signal{Kind: notify.SignalActionInvoked, ID: 2, Action: "suppress_overcurrent"})
	require.Eventually(t, usb.Closed, 5*time.Second, 5*time.Millisecond)

	fx.transport.Emit(notify.Signal{Kind: notify.SignalActionInvoked, ID: 3, Action: "suppress_undervolt"})
	require.NoError(t, waitRun(t, done))

	assert.True(t, hwmon.Closed())
	assert.True(t, fx.transport.Closed)
	assert.True(t, fx.store.IsSuppressed(power.Overcurrent))
	assert.True(t, fx.store.IsSuppressed(power.Undervoltage))
}
