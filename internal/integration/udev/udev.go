// Package udev implements device.Source on top of the kernel uevent netlink
// socket, with device attributes read from sysfs.
package udev

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"github.com/rs/zerolog"

	"github.com/colonyops/pmicmon/internal/core/device"
)

// DefaultSysfsRoot is where device attributes are read from.
const DefaultSysfsRoot = "/sys"

var _ device.Source = (*Source)(nil)

// conn is the subset of netlink.UEventConn used by Source.
type conn interface {
	Connect(mode netlink.Mode) error
	Monitor(queue chan netlink.UEvent, errs chan error, matcher netlink.Matcher) chan struct{}
	Close() error
}

// newConn is swapped in tests.
var newConn = func() conn { return new(netlink.UEventConn) }

// drainIdle is how long Close keeps draining the monitor's channels after
// the last value arrives.
var drainIdle = time.Second

// Source subscribes to udev events per subsystem.
type Source struct {
	sysfsRoot string
	log       zerolog.Logger
}

// NewSource creates a source reading attributes below sysfsRoot. An empty
// root means DefaultSysfsRoot.
func NewSource(sysfsRoot string, log zerolog.Logger) *Source {
	if sysfsRoot == "" {
		sysfsRoot = DefaultSysfsRoot
	}
	return &Source{sysfsRoot: sysfsRoot, log: log}
}

// Subscribe opens a netlink connection and delivers events whose SUBSYSTEM
// matches subsystem.
func (s *Source) Subscribe(ctx context.Context, subsystem device.Subsystem) (device.Subscription, error) {
	matcher, err := subsystemMatcher(subsystem)
	if err != nil {
		return nil, err
	}

	c := newConn()
	if err := c.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("connect udev netlink: %w", err)
	}

	sub := &subscription{
		conn:      c,
		source:    s,
		subsystem: subsystem,
		queue:     make(chan netlink.UEvent, 1),
		errs:      make(chan error, 1),
		events:    make(chan device.Event),
		done:      make(chan struct{}),
		drainIdle: drainIdle,
		log:       s.log.With().Str("subsystem", string(subsystem)).Logger(),
	}
	sub.quit = c.Monitor(sub.queue, sub.errs, matcher)

	sub.wg.Add(1)
	go sub.run(ctx)

	return sub, nil
}

// subsystemMatcher selects uevents whose SUBSYSTEM is exactly subsystem, so
// the monitor drops everything else before it reaches the queue.
func subsystemMatcher(subsystem device.Subsystem) (*netlink.RuleDefinitions, error) {
	matcher := &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{{
			Env: map[string]string{"SUBSYSTEM": "^" + regexp.QuoteMeta(string(subsystem)) + "$"},
		}},
	}
	if err := matcher.Compile(); err != nil {
		return nil, fmt.Errorf("compile udev matcher for %s: %w", subsystem, err)
	}
	return matcher, nil
}

// Convert turns a raw uevent into a device.Event. ok is false for events
// outside subsystem.
func (s *Source) Convert(ev netlink.UEvent, subsystem device.Subsystem) (device.Event, bool) {
	if ev.Env["SUBSYSTEM"] != string(subsystem) {
		return device.Event{}, false
	}

	devPath := ev.Env["DEVPATH"]
	if devPath == "" {
		devPath = ev.KObj
	}

	props := make(map[string]string, len(ev.Env))
	for k, v := range ev.Env {
		props[k] = v
	}

	return device.Event{
		Action:     string(ev.Action),
		Subsystem:  subsystem,
		DevPath:    devPath,
		Properties: props,
		Attributes: SysfsAttributes{Dir: filepath.Join(s.sysfsRoot, devPath)},
	}, true
}

type subscription struct {
	conn      conn
	source    *Source
	subsystem device.Subsystem
	log       zerolog.Logger

	queue  chan netlink.UEvent
	errs   chan error
	quit   chan struct{}
	events chan device.Event

	drainIdle time.Duration

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *subscription) Events() <-chan device.Event {
	return s.events
}

func (s *subscription) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case err := <-s.errs:
			s.log.Warn().Err(err).Msg("udev monitor error")
		case raw, open := <-s.queue:
			if !open {
				return
			}
			ev, ok := s.source.Convert(raw, s.subsystem)
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops the monitor and releases the netlink socket. The events
// channel is closed once it returns. The monitor goroutine may still be
// sending a matched event or its final read error, so both channels are
// drained in the background until they go quiet.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.quit != nil {
			close(s.quit)
		}
		err = s.conn.Close()
		s.wg.Wait()
		go s.drain()
	})
	if err != nil {
		return fmt.Errorf("close udev netlink: %w", err)
	}
	return nil
}

func (s *subscription) drain() {
	idle := time.NewTimer(s.drainIdle)
	defer idle.Stop()

	for {
		select {
		case _, open := <-s.queue:
			if !open {
				return
			}
		case <-s.errs:
		case <-idle.C:
			return
		}
		idle.Reset(s.drainIdle)
	}
}

// SysfsAttributes reads device attributes from a sysfs device directory.
type SysfsAttributes struct {
	Dir string
}

func (a SysfsAttributes) ReadAttribute(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") {
		return "", fmt.Errorf("attribute %q: %w", name, device.ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(a.Dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("attribute %s: %w", name, device.ErrNotFound)
		}
		return "", fmt.Errorf("read attribute %s: %w", name, err)
	}
	return string(data), nil
}
