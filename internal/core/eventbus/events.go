// Package eventbus provides the typed event queue that drives the notifier.
// Producers on any goroutine publish; a single loop started with Start
// dispatches every event to its subscribers in order.
package eventbus

import (
	"github.com/colonyops/pmicmon/internal/core/device"
	"github.com/colonyops/pmicmon/internal/core/notify"
	"github.com/colonyops/pmicmon/internal/core/power"
)

// Event names an event type.
type Event string

// Keep list sorted A-Z
const (
	EventActionInvoked      Event = "action.invoked"
	EventChannelRetry       Event = "channel.retry"
	EventDeviceChanged      Event = "device.changed"
	EventMarkerCreated      Event = "marker.created"
	EventNotificationClosed Event = "notification.closed"
)

// ChannelRetryPayload asks the loop to try connecting to the notification
// service again.
type ChannelRetryPayload struct {
	Attempt int
}

// NotificationClosedPayload is emitted when the server closes one of our
// notifications.
type NotificationClosedPayload struct {
	ID     uint32
	Reason notify.CloseReason
}

// ActionInvokedPayload is emitted when the user clicks an action on one of
// our notifications.
type ActionInvokedPayload struct {
	ID     uint32
	Action string
}

// DeviceChangedPayload carries a device event from a subscription.
type DeviceChangedPayload struct {
	Event device.Event
}

// MarkerCreatedPayload is emitted when a suppression marker appears on disk.
type MarkerCreatedPayload struct {
	Condition power.Condition
}
