// Package notifier runs the notification flows: it waits for the desktop
// notification service, hands control to a Flow and feeds the flow's
// notification, device and marker events through a single event loop.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/pmicmon/internal/core/config"
	"github.com/colonyops/pmicmon/internal/core/device"
	"github.com/colonyops/pmicmon/internal/core/eventbus"
	"github.com/colonyops/pmicmon/internal/core/logging"
	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/core/power"
	"github.com/colonyops/pmicmon/internal/core/suppress"
	"github.com/colonyops/pmicmon/pkg/executil"
)

// ErrNoGraphicalSession is returned by Run when neither DISPLAY nor
// WAYLAND_DISPLAY is set.
var ErrNoGraphicalSession = errors.New("missing DISPLAY / WAYLAND_DISPLAY")

// HasGraphicalSession reports whether a display server is reachable
// according to the environment.
func HasGraphicalSession(getenv func(string) string) bool {
	return getenv("DISPLAY") != "" || getenv("WAYLAND_DISPLAY") != ""
}

// Dialer connects to the notification service. Errors wrapping
// notify.ErrServiceUnavailable are retried until the readiness timeout.
type Dialer func(ctx context.Context) (notify.Transport, error)

// Flow is the application logic run once the notification service is up.
// All methods run on the event loop.
type Flow interface {
	Name() string
	OnReady(ctx context.Context, e *Engine) error
	OnClosed(ctx context.Context, e *Engine, id uint32, reason notify.CloseReason)
	OnAction(ctx context.Context, e *Engine, id uint32, action string)
}

// DeviceHandler reacts to a device event on the loop.
type DeviceHandler func(ctx context.Context, ev device.Event)

// MarkerHandler reacts to a suppression marker created on disk.
type MarkerHandler func(ctx context.Context, c power.Condition)

// Options configures an Engine.
type Options struct {
	Config   *config.Config
	Dial     Dialer
	Source   device.Source
	Store    *suppress.Store
	Executor executil.Executor
	Logger   zerolog.Logger
	Now      func() time.Time
	Getenv   func(string) string
}

// Engine owns the event loop and every resource a flow acquires through it.
// Apart from Run, its methods must only be called from flow callbacks.
type Engine struct {
	cfg    *config.Config
	dial   Dialer
	source device.Source
	store  *suppress.Store
	exec   executil.Executor
	log    zerolog.Logger
	now    func() time.Time
	getenv func(string) string

	flow Flow
	bus  *eventbus.EventBus
	err  error

	started time.Time
	retry   *time.Timer
	channel *notify.Channel

	watches       map[device.Subsystem]*watch
	markers       *suppress.Watcher
	markersCancel context.CancelFunc
	onMarker      MarkerHandler

	wg sync.WaitGroup
}

type watch struct {
	sub     device.Subscription
	handler DeviceHandler
}

// New creates an engine that will run flow.
func New(flow Flow, opts Options) *Engine {
	if flow == nil {
		panic("notifier: flow must not be nil")
	}
	if opts.Config == nil {
		cfg := config.DefaultConfig()
		opts.Config = &cfg
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Store == nil {
		opts.Store = suppress.FromEnv(opts.Getenv)
	}
	if opts.Executor == nil {
		opts.Executor = &executil.RealExecutor{}
	}

	return &Engine{
		cfg:     opts.Config,
		dial:    opts.Dial,
		source:  opts.Source,
		store:   opts.Store,
		exec:    opts.Executor,
		log:     opts.Logger,
		now:     opts.Now,
		getenv:  opts.Getenv,
		flow:    flow,
		bus:     eventbus.New(64),
		watches: make(map[device.Subsystem]*watch),
	}
}

// Run waits for the notification service, starts the flow and processes
// events until the flow quits, a fatal error occurs or ctx is cancelled.
// Cancellation is a clean exit.
func (e *Engine) Run(ctx context.Context) error {
	if !HasGraphicalSession(e.getenv) {
		return ErrNoGraphicalSession
	}
	if e.dial == nil {
		return errors.New("notifier: no dialer configured")
	}

	ctx = logging.WithFlow(ctx, e.flow.Name())

	eventbus.RegisterDebugLogger(e.bus, e.log)
	e.bus.SubscribeChannelRetry(func(p eventbus.ChannelRetryPayload) {
		e.connect(ctx, p.Attempt)
	})
	e.bus.SubscribeNotificationClosed(func(p eventbus.NotificationClosedPayload) {
		if e.channel != nil {
			e.channel.HandleClosed(p.ID, p.Reason)
		}
	})
	e.bus.SubscribeActionInvoked(func(p eventbus.ActionInvokedPayload) {
		if e.channel != nil {
			e.channel.HandleAction(p.ID, p.Action)
		}
	})
	e.bus.SubscribeDeviceChanged(func(p eventbus.DeviceChangedPayload) {
		// Events queued before an Unwatch are dropped here.
		if w, ok := e.watches[p.Event.Subsystem]; ok {
			w.handler(ctx, p.Event)
		}
	})
	e.bus.SubscribeMarkerCreated(func(p eventbus.MarkerCreatedPayload) {
		if e.onMarker != nil {
			e.onMarker(ctx, p.Condition)
		}
	})

	e.bus.PublishChannelRetry(eventbus.ChannelRetryPayload{Attempt: 1})
	e.bus.Start(ctx)

	e.shutdown()

	if e.err != nil {
		e.log.Error().Ctx(ctx).Err(e.err).Msg("notifier stopped with error")
		return e.err
	}
	e.log.Debug().Ctx(ctx).Msg("notifier stopped")
	return nil
}

func (e *Engine) connect(ctx context.Context, attempt int) {
	now := e.now()
	if attempt == 1 {
		e.started = now
	}

	transport, err := e.dial(ctx)
	if err != nil {
		if !errors.Is(err, notify.ErrServiceUnavailable) {
			e.Fail(fmt.Errorf("connect notification service: %w", err))
			return
		}

		timeout := e.cfg.Readiness.Timeout
		if now.Sub(e.started) > timeout {
			e.Fail(fmt.Errorf("notification service not available after %s: %w", timeout, err))
			return
		}

		e.log.Debug().Ctx(ctx).Err(err).Int("attempt", attempt).Msg("notification service not ready, retrying")
		e.retry = time.AfterFunc(e.cfg.Readiness.Interval, func() {
			e.bus.PublishChannelRetry(eventbus.ChannelRetryPayload{Attempt: attempt + 1})
		})
		return
	}

	e.attach(ctx, transport)

	if info, err := e.channel.ServerInfo(ctx); err == nil {
		e.log.Info().Ctx(ctx).
			Str("server", info.Name).
			Str("vendor", info.Vendor).
			Str("version", info.Version).
			Int("attempts", attempt).
			Msg("notification service ready")
	}

	if err := e.flow.OnReady(ctx, e); err != nil {
		e.Fail(err)
	}
}

// attach wraps transport in a channel whose signals reach the flow through
// the loop.
func (e *Engine) attach(ctx context.Context, transport notify.Transport) {
	e.channel = notify.NewChannel(transport)
	e.channel.SetHandlers(
		func(id uint32, reason notify.CloseReason) { e.flow.OnClosed(ctx, e, id, reason) },
		func(id uint32, action string) { e.flow.OnAction(ctx, e, id, action) },
	)

	e.wg.Add(1)
	go e.pumpSignals(e.channel.Signals())
}

func (e *Engine) pumpSignals(signals <-chan notify.Signal) {
	defer e.wg.Done()
	for sig := range signals {
		switch sig.Kind {
		case notify.SignalClosed:
			e.bus.PublishNotificationClosed(eventbus.NotificationClosedPayload{ID: sig.ID, Reason: sig.Reason})
		case notify.SignalActionInvoked:
			e.bus.PublishActionInvoked(eventbus.ActionInvokedPayload{ID: sig.ID, Action: sig.Action})
		}
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Store returns the suppression marker store.
func (e *Engine) Store() *suppress.Store {
	return e.store
}

// Logger returns the flow logger.
func (e *Engine) Logger() *zerolog.Logger {
	return &e.log
}

// Channel returns the notification channel. It is nil until the service is
// ready.
func (e *Engine) Channel() *notify.Channel {
	return e.channel
}

// Notify renders the message for c against the server's current
// capabilities and sends it. suppressAction is the action ID used for
// "don't show again".
func (e *Engine) Notify(ctx context.Context, c power.Condition, suppressAction string) (uint32, error) {
	ctx = logging.WithCondition(ctx, c.String())

	caps, err := e.channel.Capabilities(ctx)
	if err != nil {
		return 0, err
	}

	rendered := notify.Render(caps, notify.Content{
		Message:        c.Message(),
		URL:            e.cfg.ReferenceURL,
		SuppressAction: suppressAction,
	})

	id, err := e.channel.Notify(ctx, notify.Notification{
		AppName: e.cfg.AppName,
		AppIcon: e.cfg.AppIcon,
		Summary: e.cfg.Title,
		Body:    rendered.Body,
		Actions: rendered.Actions,
		Urgency: c.Urgency(),
		Timeout: e.cfg.NotificationTimeout,
	})
	if err != nil {
		return 0, err
	}

	e.log.Info().Ctx(ctx).Uint32("id", id).Strs("caps", caps.List()).Msg("notification sent")
	return id, nil
}

// Dismiss asks the server to close notification id. The flow still learns
// about it through OnClosed. Failures are logged.
func (e *Engine) Dismiss(ctx context.Context, id uint32) {
	if id == 0 || e.channel == nil {
		return
	}
	if err := e.channel.Remove(ctx, id); err != nil {
		e.log.Warn().Ctx(ctx).Err(err).Uint32("id", id).Msg("failed to dismiss notification")
	}
}

// Suppress writes the "don't show again" marker for c. Failures are logged;
// the user can retry from the next notification.
func (e *Engine) Suppress(ctx context.Context, c power.Condition) {
	ctx = logging.WithCondition(ctx, c.String())
	if err := e.store.Suppress(c); err != nil {
		e.log.Error().Ctx(ctx).Err(err).Msg("failed to write suppression marker")
		return
	}
	e.log.Info().Ctx(ctx).Str("path", e.store.UserPath(c)).Msg("condition suppressed")
}

// OpenURL launches the configured browser on the reference page.
func (e *Engine) OpenURL(ctx context.Context) {
	cmd, args, err := executil.SplitCommand(e.cfg.BrowserCommand)
	if err != nil {
		e.log.Error().Ctx(ctx).Err(err).Msg("invalid browser command")
		return
	}
	args = append(args, e.cfg.ReferenceURL)
	if err := e.exec.Start(ctx, cmd, args...); err != nil {
		e.log.Error().Ctx(ctx).Err(err).Str("url", e.cfg.ReferenceURL).Msg("failed to open browser")
	}
}

// Watch subscribes to subsystem and calls handler on the loop for each
// event until Unwatch or shutdown.
func (e *Engine) Watch(ctx context.Context, subsystem device.Subsystem, handler DeviceHandler) error {
	if e.source == nil {
		return fmt.Errorf("watch %s: no device source configured", subsystem)
	}
	if _, ok := e.watches[subsystem]; ok {
		return fmt.Errorf("watch %s: already watching", subsystem)
	}

	sub, err := e.source.Subscribe(ctx, subsystem)
	if err != nil {
		return fmt.Errorf("watch %s: %w", subsystem, err)
	}
	e.watches[subsystem] = &watch{sub: sub, handler: handler}

	e.wg.Add(1)
	go e.pumpDevice(subsystem, sub)

	e.log.Debug().Ctx(ctx).Str("subsystem", string(subsystem)).Msg("watching device events")
	return nil
}

func (e *Engine) pumpDevice(subsystem device.Subsystem, sub device.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		ev.Subsystem = subsystem
		e.bus.PublishDeviceChanged(eventbus.DeviceChangedPayload{Event: ev})
	}
}

// Unwatch closes the subscription for subsystem. Events already queued for
// it are discarded.
func (e *Engine) Unwatch(subsystem device.Subsystem) {
	w, ok := e.watches[subsystem]
	if !ok {
		return
	}
	delete(e.watches, subsystem)
	if err := w.sub.Close(); err != nil {
		e.log.Warn().Err(err).Str("subsystem", string(subsystem)).Msg("failed to close device subscription")
	}
}

// Watching reports whether subsystem has an active subscription.
func (e *Engine) Watching(subsystem device.Subsystem) bool {
	_, ok := e.watches[subsystem]
	return ok
}

// WatchMarkers reports suppression markers created while running. It is a
// no-op when none of the marker directories can be watched.
func (e *Engine) WatchMarkers(ctx context.Context, handler MarkerHandler) {
	if e.markers != nil {
		return
	}

	dirs := e.store.SearchPath()
	// The user directory usually does not exist until the first marker.
	if err := os.MkdirAll(dirs[0], 0o755); err != nil {
		e.log.Debug().Err(err).Str("dir", dirs[0]).Msg("cannot create marker directory")
	}

	w := suppress.NewWatcher(dirs, e.log)
	if w == nil {
		e.log.Debug().Ctx(ctx).Msg("no marker directories to watch")
		return
	}

	wctx, cancel := context.WithCancel(ctx)
	e.markers = w
	e.markersCancel = cancel
	e.onMarker = handler

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		w.Run(wctx, func(c power.Condition) {
			e.bus.PublishMarkerCreated(eventbus.MarkerCreatedPayload{Condition: c})
		})
	}()
}

// Quit stops the loop; Run returns nil unless Fail was called.
func (e *Engine) Quit() {
	e.bus.Stop()
}

// Fail stops the loop and makes Run return err. Only the first error is
// kept.
func (e *Engine) Fail(err error) {
	if e.err == nil {
		e.err = err
	}
	e.bus.Stop()
}

func (e *Engine) shutdown() {
	if e.retry != nil {
		e.retry.Stop()
	}

	for subsystem := range e.watches {
		e.Unwatch(subsystem)
	}

	if e.markers != nil {
		e.markersCancel()
		if err := e.markers.Close(); err != nil {
			e.log.Warn().Err(err).Msg("failed to close marker watcher")
		}
	}

	if e.channel != nil {
		if err := e.channel.Close(); err != nil {
			e.log.Warn().Err(err).Msg("failed to close notification channel")
		}
	}

	e.wg.Wait()
}
