// Package device defines the boundary to the kernel device event stream:
// subscriptions per subsystem delivering change events whose properties and
// attributes can be looked up by key.
package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned when an event lacks a property or attribute.
var ErrNotFound = errors.New("device: key not found")

// Subsystem names a kernel device subsystem.
type Subsystem string

const (
	SubsystemUSB   Subsystem = "usb"
	SubsystemHwmon Subsystem = "hwmon"
)

// ActionChange is the uevent action for attribute changes on a device.
const ActionChange = "change"

// AttributeReader looks up device attributes, typically from sysfs.
type AttributeReader interface {
	ReadAttribute(name string) (string, error)
}

// Event is a single device event.
type Event struct {
	Action     string
	Subsystem  Subsystem
	DevPath    string
	Properties map[string]string
	Attributes AttributeReader
}

// Property returns the uevent property key.
func (e Event) Property(key string) (string, error) {
	v, ok := e.Properties[key]
	if !ok {
		return "", fmt.Errorf("property %s: %w", key, ErrNotFound)
	}
	return v, nil
}

// PropertyInt parses the uevent property key as an integer.
func (e Event) PropertyInt(key string) (int64, error) {
	v, err := e.Property(key)
	if err != nil {
		return 0, err
	}
	return parseInt(key, v)
}

// Attribute returns the device attribute name with surrounding whitespace
// removed.
func (e Event) Attribute(name string) (string, error) {
	if e.Attributes == nil {
		return "", fmt.Errorf("attribute %s: %w", name, ErrNotFound)
	}
	v, err := e.Attributes.ReadAttribute(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// AttributeInt parses the device attribute name as an integer.
func (e Event) AttributeInt(name string) (int64, error) {
	v, err := e.Attribute(name)
	if err != nil {
		return 0, err
	}
	return parseInt(name, v)
}

func parseInt(key, v string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

// Attributes is an in-memory AttributeReader.
type Attributes map[string]string

func (a Attributes) ReadAttribute(name string) (string, error) {
	v, ok := a[name]
	if !ok {
		return "", fmt.Errorf("attribute %s: %w", name, ErrNotFound)
	}
	return v, nil
}

// Subscription is a live stream of events for one subsystem.
type Subscription interface {
	// Events is closed after Close returns.
	Events() <-chan Event
	Close() error
}

// Source opens subscriptions.
type Source interface {
	Subscribe(ctx context.Context, subsystem Subsystem) (Subscription, error)
}
