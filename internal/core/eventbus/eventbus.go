package eventbus

import (
	"context"
	"sync"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus is a buffered event queue with a single dispatch loop.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a bus whose queue holds buffer events before publishers block.
func New(buffer int) *EventBus {
	if buffer < 1 {
		buffer = 1
	}
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: make(map[Event][]func(any)),
		done: make(chan struct{}),
	}
}

// Start runs the dispatch loop until ctx is cancelled or Stop is called.
// Subscribers run on the calling goroutine.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			bus.Stop()
			return
		case <-bus.done:
			return
		case env := <-bus.ch:
			if bus.Stopped() {
				return
			}
			bus.dispatch(env)
		}
	}
}

// Stop ends the dispatch loop. Events still queued are discarded and later
// publishes are dropped. Safe to call more than once and from subscribers.
func (bus *EventBus) Stop() {
	bus.stopOnce.Do(func() { close(bus.done) })
}

// Done is closed once Stop has been called.
func (bus *EventBus) Done() <-chan struct{} {
	return bus.done
}

// Stopped reports whether Stop has been called.
func (bus *EventBus) Stopped() bool {
	select {
	case <-bus.done:
		return true
	default:
		return false
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	handlers := make([]func(any), len(bus.subs[env.event]))
	copy(handlers, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range handlers {
		if bus.Stopped() {
			return
		}
		bus.call(env, fn)
	}
}

func (bus *EventBus) call(env envelope, fn func(any)) {
	defer func() {
		if r := recover(); r != nil {
			bus.runOnPanic(env.event, env.payload, r)
		}
	}()
	fn(env.payload)
}

// PublishActionInvoked enqueues an action.invoked event.
func (bus *EventBus) PublishActionInvoked(p ActionInvokedPayload) {
	bus.send(EventActionInvoked, p)
}

// SubscribeActionInvoked registers fn for action.invoked events.
func (bus *EventBus) SubscribeActionInvoked(fn func(ActionInvokedPayload)) {
	bus.subscribe(EventActionInvoked, func(p any) { fn(p.(ActionInvokedPayload)) })
}

// PublishChannelRetry enqueues a channel.retry event.
func (bus *EventBus) PublishChannelRetry(p ChannelRetryPayload) {
	bus.send(EventChannelRetry, p)
}

// SubscribeChannelRetry registers fn for channel.retry events.
func (bus *EventBus) SubscribeChannelRetry(fn func(ChannelRetryPayload)) {
	bus.subscribe(EventChannelRetry, func(p any) { fn(p.(ChannelRetryPayload)) })
}

// PublishDeviceChanged enqueues a device.changed event.
func (bus *EventBus) PublishDeviceChanged(p DeviceChangedPayload) {
	bus.send(EventDeviceChanged, p)
}

// SubscribeDeviceChanged registers fn for device.changed events.
func (bus *EventBus) SubscribeDeviceChanged(fn func(DeviceChangedPayload)) {
	bus.subscribe(EventDeviceChanged, func(p any) { fn(p.(DeviceChangedPayload)) })
}

// PublishMarkerCreated enqueues a marker.created event.
func (bus *EventBus) PublishMarkerCreated(p MarkerCreatedPayload) {
	bus.send(EventMarkerCreated, p)
}

// SubscribeMarkerCreated registers fn for marker.created events.
func (bus *EventBus) SubscribeMarkerCreated(fn func(MarkerCreatedPayload)) {
	bus.subscribe(EventMarkerCreated, func(p any) { fn(p.(MarkerCreatedPayload)) })
}

// PublishNotificationClosed enqueues a notification.closed event.
func (bus *EventBus) PublishNotificationClosed(p NotificationClosedPayload) {
	bus.send(EventNotificationClosed, p)
}

// SubscribeNotificationClosed registers fn for notification.closed events.
func (bus *EventBus) SubscribeNotificationClosed(fn func(NotificationClosedPayload)) {
	bus.subscribe(EventNotificationClosed, func(p any) { fn(p.(NotificationClosedPayload)) })
}
