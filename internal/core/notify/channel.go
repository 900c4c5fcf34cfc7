package notify

import (
	"context"
	"fmt"
	"slices"
)

// Transport is the raw notification service. Implementations deliver
// signals for every notification on the bus, including foreign ones.
type Transport interface {
	ServerInformation(ctx context.Context) (ServerInfo, error)
	Capabilities(ctx context.Context) ([]string, error)
	// Notify sends a notification and returns its ID. An ID of 0 means the
	// server did not show anything.
	Notify(ctx context.Context, n Notification) (uint32, error)
	CloseNotification(ctx context.Context, id uint32) error
	// Signals is closed when the transport is closed.
	Signals() <-chan Signal
	Close() error
}

// Channel wraps a Transport and tracks the notifications this process sent.
// Inbound signals are only forwarded to the handlers for pending IDs.
//
// Channel is not safe for concurrent use; it is owned by the event loop.
type Channel struct {
	transport Transport
	pending   map[uint32]struct{}
	onClosed  func(id uint32, reason CloseReason)
	onAction  func(id uint32, action string)
}

// NewChannel wraps transport.
func NewChannel(transport Transport) *Channel {
	if transport == nil {
		panic("notify: transport must not be nil")
	}
	return &Channel{
		transport: transport,
		pending:   make(map[uint32]struct{}),
	}
}

// SetHandlers registers the callbacks for closed notifications and invoked
// actions. Either may be nil.
func (c *Channel) SetHandlers(onClosed func(id uint32, reason CloseReason), onAction func(id uint32, action string)) {
	c.onClosed = onClosed
	c.onAction = onAction
}

// ServerInfo returns the service's name, vendor, version and protocol version.
func (c *Channel) ServerInfo(ctx context.Context) (ServerInfo, error) {
	info, err := c.transport.ServerInformation(ctx)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("get server information: %w", err)
	}
	return info, nil
}

// Capabilities queries the server's capability set.
func (c *Channel) Capabilities(ctx context.Context) (Capabilities, error) {
	tokens, err := c.transport.Capabilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("get capabilities: %w", err)
	}
	return NewCapabilities(tokens...), nil
}

// Notify sends n and records the returned ID as pending unless it is 0.
func (c *Channel) Notify(ctx context.Context, n Notification) (uint32, error) {
	id, err := c.transport.Notify(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("send notification: %w", err)
	}
	if id != 0 {
		c.pending[id] = struct{}{}
	}
	return id, nil
}

// Remove asks the server to close the notification. The ID stays pending
// until the server reports it closed.
func (c *Channel) Remove(ctx context.Context, id uint32) error {
	if err := c.transport.CloseNotification(ctx, id); err != nil {
		return fmt.Errorf("close notification %d: %w", id, err)
	}
	return nil
}

// Pending returns the IDs sent by this channel that have not been closed yet.
func (c *Channel) Pending() []uint32 {
	out := make([]uint32, 0, len(c.pending))
	for id := range c.pending {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// IsPending reports whether id was sent by this channel and is still open.
func (c *Channel) IsPending(id uint32) bool {
	_, ok := c.pending[id]
	return ok
}

// Signals exposes the transport's raw signal stream.
func (c *Channel) Signals() <-chan Signal {
	return c.transport.Signals()
}

// HandleClosed drops id from the pending set and calls the closed handler.
// IDs we did not send are ignored.
func (c *Channel) HandleClosed(id uint32, reason CloseReason) {
	if _, ok := c.pending[id]; !ok {
		return
	}
	delete(c.pending, id)
	if c.onClosed != nil {
		c.onClosed(id, reason)
	}
}

// HandleAction calls the action handler for pending IDs only.
func (c *Channel) HandleAction(id uint32, action string) {
	if _, ok := c.pending[id]; !ok {
		return
	}
	if c.onAction != nil {
		c.onAction(id, action)
	}
}

// Close releases the transport.
func (c *Channel) Close() error {
	return c.transport.Close()
}
