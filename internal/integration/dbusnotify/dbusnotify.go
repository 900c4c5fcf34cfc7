// Package dbusnotify implements notify.Transport over the session bus
// org.freedesktop.Notifications service.
package dbusnotify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/colonyops/pmicmon/internal/core/notify"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	iface      = "org.freedesktop.Notifications"

	memberClosed = "NotificationClosed"
	memberAction = "ActionInvoked"
)

// Error names that mean the service is not up yet.
var transientErrors = map[string]bool{
	"org.freedesktop.DBus.Error.NameHasNoOwner": true,
	"org.freedesktop.DBus.Error.ServiceUnknown": true,
}

var _ notify.Transport = (*Transport)(nil)

// Transport talks to the notification server over D-Bus.
type Transport struct {
	conn *dbus.Conn
	obj  dbus.BusObject
	log  zerolog.Logger

	raw     chan *dbus.Signal
	signals chan notify.Signal

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Dial connects to the session bus and checks that the notification service
// answers. A missing service is reported as notify.ErrServiceUnavailable so
// callers can retry.
func Dial(ctx context.Context, log zerolog.Logger) (*Transport, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	t := newTransport(conn, log)
	if _, err := t.ServerInformation(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := t.subscribe(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return t, nil
}

func newTransport(conn *dbus.Conn, log zerolog.Logger) *Transport {
	return &Transport{
		conn:    conn,
		obj:     conn.Object(busName, objectPath),
		log:     log,
		raw:     make(chan *dbus.Signal, 16),
		signals: make(chan notify.Signal, 16),
		done:    make(chan struct{}),
	}
}

func (t *Transport) subscribe() error {
	for _, member := range []string{memberClosed, memberAction} {
		err := t.conn.AddMatchSignal(
			dbus.WithMatchObjectPath(objectPath),
			dbus.WithMatchInterface(iface),
			dbus.WithMatchMember(member),
		)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", member, err)
		}
	}

	t.conn.Signal(t.raw)

	t.wg.Add(1)
	go t.pump()
	return nil
}

func (t *Transport) pump() {
	defer t.wg.Done()
	defer close(t.signals)

	for {
		select {
		case <-t.done:
			return
		case raw, ok := <-t.raw:
			if !ok {
				return
			}
			sig, ok := convertSignal(raw)
			if !ok {
				continue
			}
			select {
			case t.signals <- sig:
			case <-t.done:
				return
			}
		}
	}
}

func convertSignal(raw *dbus.Signal) (notify.Signal, bool) {
	if raw == nil || raw.Path != objectPath {
		return notify.Signal{}, false
	}

	switch raw.Name {
	case iface + "." + memberClosed:
		var (
			id     uint32
			reason uint32
		)
		if err := dbus.Store(raw.Body, &id, &reason); err != nil {
			return notify.Signal{}, false
		}
		return notify.Signal{Kind: notify.SignalClosed, ID: id, Reason: notify.CloseReason(reason)}, true
	case iface + "." + memberAction:
		var (
			id     uint32
			action string
		)
		if err := dbus.Store(raw.Body, &id, &action); err != nil {
			return notify.Signal{}, false
		}
		return notify.Signal{Kind: notify.SignalActionInvoked, ID: id, Action: action}, true
	default:
		return notify.Signal{}, false
	}
}

func (t *Transport) call(ctx context.Context, method string, args ...any) *dbus.Call {
	return t.obj.CallWithContext(ctx, iface+"."+method, 0, args...)
}

func (t *Transport) ServerInformation(ctx context.Context) (notify.ServerInfo, error) {
	var info notify.ServerInfo
	err := t.call(ctx, "GetServerInformation").Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	if err != nil {
		return notify.ServerInfo{}, classify("GetServerInformation", err)
	}
	return info, nil
}

func (t *Transport) Capabilities(ctx context.Context) ([]string, error) {
	var caps []string
	if err := t.call(ctx, "GetCapabilities").Store(&caps); err != nil {
		return nil, classify("GetCapabilities", err)
	}
	return caps, nil
}

func (t *Transport) Notify(ctx context.Context, n notify.Notification) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(n.Urgency)),
	}

	var id uint32
	err := t.call(ctx, "Notify",
		n.AppName,
		n.ReplacesID,
		n.AppIcon,
		n.Summary,
		n.Body,
		flattenActions(n.Actions),
		hints,
		n.Timeout,
	).Store(&id)
	if err != nil {
		return 0, classify("Notify", err)
	}
	return id, nil
}

func (t *Transport) CloseNotification(ctx context.Context, id uint32) error {
	if err := t.call(ctx, "CloseNotification", id).Err; err != nil {
		return classify("CloseNotification", err)
	}
	return nil
}

func (t *Transport) Signals() <-chan notify.Signal {
	return t.signals
}

// Close stops signal delivery and closes the bus connection.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.conn.RemoveSignal(t.raw)
		err = t.conn.Close()
		t.wg.Wait()
	})
	if err != nil {
		return fmt.Errorf("close session bus: %w", err)
	}
	return nil
}

// flattenActions encodes actions as the alternating id, label list the
// Notify method expects.
func flattenActions(actions []notify.Action) []string {
	out := make([]string, 0, len(actions)*2)
	for _, a := range actions {
		out = append(out, a.ID, a.Label)
	}
	return out
}

// classify wraps err, marking the errors that mean the service has not
// started yet with notify.ErrServiceUnavailable.
func classify(method string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", method, notify.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("%s: %w", method, err)
}

func isTransient(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return transientErrors[dbusErr.Name]
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && dbusErrPtr != nil {
		return transientErrors[dbusErrPtr.Name]
	}
	return false
}
