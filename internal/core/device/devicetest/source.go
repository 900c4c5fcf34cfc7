// Package devicetest provides an in-memory device.Source for tests.
package devicetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/colonyops/pmicmon/internal/core/device"
)

var _ device.Source = (*Source)(nil)

// Source hands out one Subscription per subsystem and records what was
// subscribed.
type Source struct {
	mu   sync.Mutex
	subs map[device.Subsystem]*Subscription
	// Err is returned by Subscribe when set.
	Err error
}

// New creates an empty source.
func New() *Source {
	return &Source{subs: make(map[device.Subsystem]*Subscription)}
}

func (s *Source) Subscribe(_ context.Context, subsystem device.Subsystem) (device.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if _, ok := s.subs[subsystem]; ok {
		return nil, fmt.Errorf("already subscribed to %s", subsystem)
	}
	sub := &Subscription{events: make(chan device.Event, 16)}
	s.subs[subsystem] = sub
	return sub, nil
}

// Get returns the subscription for subsystem, or nil.
func (s *Source) Get(subsystem device.Subsystem) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[subsystem]
}

// Count returns how many subscriptions were opened.
func (s *Source) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Subscription is a fake subscription fed by Emit.
type Subscription struct {
	mu     sync.Mutex
	events chan device.Event
	closed bool
}

func (s *Subscription) Events() <-chan device.Event {
	return s.events
}

// Emit delivers ev unless the subscription is closed.
func (s *Subscription) Emit(ev device.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Closed reports whether Close was called.
func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
