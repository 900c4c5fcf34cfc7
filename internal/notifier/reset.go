package notifier

import (
	"context"

	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/core/power"
)

// ResetFlow reports a brownout reset or an inadequate power supply once per
// boot and exits when the notification goes away.
type ResetFlow struct {
	reader       *power.StatusReader
	minCurrentMA uint32

	shown power.Condition
}

// NewResetFlow creates the one-shot boot flow.
func NewResetFlow(reader *power.StatusReader, minCurrentMA uint32) *ResetFlow {
	if reader == nil {
		panic("notifier: status reader must not be nil")
	}
	return &ResetFlow{reader: reader, minCurrentMA: minCurrentMA}
}

func (f *ResetFlow) Name() string { return "reset" }

// Shown returns the condition that was notified, or 0.
func (f *ResetFlow) Shown() power.Condition { return f.shown }

func (f *ResetFlow) OnReady(ctx context.Context, e *Engine) error {
	cond, ok, err := BootCondition(f.reader, e.Store().IsSuppressed, f.minCurrentMA)
	if err != nil {
		e.Logger().Warn().Ctx(ctx).Err(err).Str("dir", f.reader.Dir()).Msg("cannot read power status")
	}
	if !ok {
		e.Logger().Debug().Ctx(ctx).Msg("nothing to report")
		e.Quit()
		return nil
	}

	if _, err := e.Notify(ctx, cond, notify.ActionSuppress); err != nil {
		return err
	}
	f.shown = cond

	if len(e.Channel().Pending()) == 0 {
		e.Quit()
	}
	return nil
}

func (f *ResetFlow) OnClosed(_ context.Context, e *Engine, _ uint32, _ notify.CloseReason) {
	e.Quit()
}

func (f *ResetFlow) OnAction(ctx context.Context, e *Engine, _ uint32, action string) {
	switch action {
	case notify.ActionMoreInfo:
		e.OpenURL(ctx)
	case notify.ActionSuppress:
		e.Suppress(ctx, f.shown)
	default:
		e.Logger().Debug().Ctx(ctx).Str("action", action).Msg("ignoring unknown action")
	}
}
