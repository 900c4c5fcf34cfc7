// Package notifytest provides a recording notify.Transport for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/colonyops/pmicmon/internal/core/notify"
)

var _ notify.Transport = (*Transport)(nil)

// Transport records every notification and hands out sequential IDs.
// Configure Caps, NextID and the *Err fields to control replies.
type Transport struct {
	mu sync.Mutex

	Info notify.ServerInfo
	Caps []string
	// NextID is returned by the next Notify call and then incremented.
	// Set ZeroIDs to make Notify always return 0.
	NextID  uint32
	ZeroIDs bool

	InfoErr   error
	CapsErr   error
	NotifyErr error

	Sent    []notify.Notification
	Removed []uint32
	Closed  bool

	signals chan notify.Signal
}

// New returns a transport advertising caps.
func New(caps ...string) *Transport {
	return &Transport{
		Info:    notify.ServerInfo{Name: "fake", Vendor: "test", Version: "1.0", SpecVersion: "1.2"},
		Caps:    caps,
		NextID:  1,
		signals: make(chan notify.Signal, 16),
	}
}

func (t *Transport) ServerInformation(_ context.Context) (notify.ServerInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Info, t.InfoErr
}

func (t *Transport) Capabilities(_ context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CapsErr != nil {
		return nil, t.CapsErr
	}
	out := make([]string, len(t.Caps))
	copy(out, t.Caps)
	return out, nil
}

func (t *Transport) Notify(_ context.Context, n notify.Notification) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.NotifyErr != nil {
		return 0, t.NotifyErr
	}
	t.Sent = append(t.Sent, n)
	if t.ZeroIDs {
		return 0, nil
	}
	id := t.NextID
	t.NextID++
	return id, nil
}

func (t *Transport) CloseNotification(_ context.Context, id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Removed = append(t.Removed, id)
	return nil
}

func (t *Transport) Signals() <-chan notify.Signal {
	return t.signals
}

// Emit queues a signal as if the server had sent it. Signals emitted after
// Close are dropped.
func (t *Transport) Emit(sig notify.Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return
	}
	t.signals <- sig
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Closed {
		t.Closed = true
		close(t.signals)
	}
	return nil
}

// SentCount returns the number of notifications sent so far.
func (t *Transport) SentCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Sent)
}

// Last returns the most recent notification. It panics if none was sent.
func (t *Transport) Last() notify.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Sent[len(t.Sent)-1]
}
