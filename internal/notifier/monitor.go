package notifier

import (
	"context"
	"errors"

	"github.com/colonyops/pmicmon/internal/core/device"
	"github.com/colonyops/pmicmon/internal/core/logging"
	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/core/power"
)

const (
	propOverCurrentPort  = "OVER_CURRENT_PORT"
	propOverCurrentCount = "OVER_CURRENT_COUNT"
	attrName             = "name"
)

// category is one monitored condition and the subsystem that reports it.
type category struct {
	condition power.Condition
	subsystem device.Subsystem
	action    string
	pending   uint32
	active    bool
}

// MonitorFlow watches for undervoltage and USB overcurrent for the whole
// session. Each condition has at most one notification on screen and can
// be silenced independently.
type MonitorFlow struct {
	sensor string
	alarm  string

	undervolt   *category
	overcurrent *category

	// port -> last overcurrent counter seen
	counts map[string]int64
}

// NewMonitorFlow creates the monitor flow. sensor and alarm name the hwmon
// device and its alarm attribute.
func NewMonitorFlow(sensor, alarm string) *MonitorFlow {
	return &MonitorFlow{
		sensor: sensor,
		alarm:  alarm,
		undervolt: &category{
			condition: power.Undervoltage,
			subsystem: device.SubsystemHwmon,
			action:    notify.SuppressActionFor(power.Undervoltage.String()),
		},
		overcurrent: &category{
			condition: power.Overcurrent,
			subsystem: device.SubsystemUSB,
			action:    notify.SuppressActionFor(power.Overcurrent.String()),
		},
		counts: make(map[string]int64),
	}
}

func (f *MonitorFlow) Name() string { return "monitor" }

func (f *MonitorFlow) categories() []*category {
	return []*category{f.overcurrent, f.undervolt}
}

// Watching reports whether c still has an active subscription.
func (f *MonitorFlow) Watching(c power.Condition) bool {
	cat := f.categoryFor(c)
	return cat != nil && cat.active
}

// Pending returns the notification ID on screen for c, or 0.
func (f *MonitorFlow) Pending(c power.Condition) uint32 {
	if cat := f.categoryFor(c); cat != nil {
		return cat.pending
	}
	return 0
}

func (f *MonitorFlow) OnReady(ctx context.Context, e *Engine) error {
	handlers := map[power.Condition]DeviceHandler{
		power.Overcurrent:  func(ctx context.Context, ev device.Event) { f.onUSB(ctx, e, ev) },
		power.Undervoltage: func(ctx context.Context, ev device.Event) { f.onHwmon(ctx, e, ev) },
	}

	for _, cat := range f.categories() {
		if e.Store().IsSuppressed(cat.condition) {
			e.Logger().Info().Ctx(logging.WithCondition(ctx, cat.condition.String())).Msg("condition suppressed, not monitoring")
			continue
		}
		if err := e.Watch(ctx, cat.subsystem, handlers[cat.condition]); err != nil {
			return err
		}
		cat.active = true
	}

	if !f.anyActive() {
		e.Quit()
		return nil
	}

	if e.Config().Monitor.WatchesMarkers() {
		e.WatchMarkers(ctx, func(ctx context.Context, c power.Condition) {
			cat := f.categoryFor(c)
			if cat == nil || !cat.active {
				return
			}
			// The warning on screen is stale once the condition is suppressed.
			e.Dismiss(ctx, cat.pending)
			f.teardown(ctx, e, cat)
		})
	}
	return nil
}

func (f *MonitorFlow) onUSB(ctx context.Context, e *Engine, ev device.Event) {
	if ev.Action != device.ActionChange {
		return
	}
	port, err := ev.Property(propOverCurrentPort)
	if err != nil || port == "" {
		return
	}
	count, err := ev.PropertyInt(propOverCurrentCount)
	if err != nil {
		if !errors.Is(err, device.ErrNotFound) {
			e.Logger().Debug().Ctx(ctx).Err(err).Str("port", port).Msg("ignoring malformed overcurrent event")
		}
		return
	}

	cat := f.overcurrent
	if cat.pending != 0 || count <= f.counts[port] {
		return
	}
	f.counts[port] = count

	e.Logger().Warn().Ctx(ctx).Str("port", port).Int64("count", count).Msg("usb overcurrent")
	f.notify(ctx, e, cat)
}

func (f *MonitorFlow) onHwmon(ctx context.Context, e *Engine, ev device.Event) {
	if ev.Action != device.ActionChange {
		return
	}
	name, err := ev.Attribute(attrName)
	if err != nil || name != f.sensor {
		return
	}
	alarm, err := ev.AttributeInt(f.alarm)
	if err != nil {
		if !errors.Is(err, device.ErrNotFound) {
			e.Logger().Debug().Ctx(ctx).Err(err).Str("devpath", ev.DevPath).Msg("ignoring malformed hwmon event")
		}
		return
	}

	cat := f.undervolt
	if alarm == 0 || cat.pending != 0 {
		return
	}

	e.Logger().Warn().Ctx(ctx).Str("devpath", ev.DevPath).Msg("undervoltage alarm")
	f.notify(ctx, e, cat)
}

func (f *MonitorFlow) notify(ctx context.Context, e *Engine, cat *category) {
	id, err := e.Notify(ctx, cat.condition, cat.action)
	if err != nil {
		e.Fail(err)
		return
	}
	cat.pending = id
}

func (f *MonitorFlow) OnClosed(_ context.Context, _ *Engine, id uint32, _ notify.CloseReason) {
	if id == 0 {
		return
	}
	for _, cat := range f.categories() {
		if cat.pending == id {
			cat.pending = 0
			return
		}
	}
}

func (f *MonitorFlow) OnAction(ctx context.Context, e *Engine, id uint32, action string) {
	if action == notify.ActionMoreInfo {
		e.OpenURL(ctx)
		return
	}

	for _, cat := range f.categories() {
		if action == cat.action {
			e.Suppress(ctx, cat.condition)
			f.teardown(ctx, e, cat)
			return
		}
	}
	e.Logger().Debug().Ctx(ctx).Uint32("id", id).Str("action", action).Msg("ignoring unknown action")
}

// teardown stops monitoring cat and quits once nothing is monitored.
func (f *MonitorFlow) teardown(ctx context.Context, e *Engine, cat *category) {
	if !cat.active {
		return
	}
	cat.active = false
	cat.pending = 0
	e.Unwatch(cat.subsystem)

	e.Logger().Info().Ctx(logging.WithCondition(ctx, cat.condition.String())).Msg("stopped monitoring")

	if !f.anyActive() {
		e.Quit()
	}
}

func (f *MonitorFlow) anyActive() bool {
	for _, cat := range f.categories() {
		if cat.active {
			return true
		}
	}
	return false
}

func (f *MonitorFlow) categoryFor(c power.Condition) *category {
	for _, cat := range f.categories() {
		if cat.condition == c {
			return cat
		}
	}
	return nil
}
