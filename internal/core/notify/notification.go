// Package notify models the freedesktop notification service as seen by the
// notifier: a request/response transport with two inbound signals, a channel
// that tracks which notifications we sent, and the capability-adaptive body
// formatting shared by every flow.
package notify

import (
	"errors"
	"slices"
)

// ErrServiceUnavailable marks transport errors caused by the notification
// service not being registered on the bus yet. Callers may retry these.
var ErrServiceUnavailable = errors.New("notification service unavailable")

// Urgency represents notification priority levels of the freedesktop notification protocol.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyNormal:
		return "normal"
	case UrgencyCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Capability tokens returned by GetCapabilities that change how we format.
const (
	CapActions        = "actions"
	CapBodyHyperlinks = "body-hyperlinks"
	CapBodyMarkup     = "body-markup"
)

// Action is an interactive button attached to a notification.
type Action struct {
	ID    string
	Label string
}

// Notification contains data for a desktop notification.
type Notification struct {
	AppName    string
	AppIcon    string
	Summary    string
	Body       string
	ReplacesID uint32 // 0 = new notification
	Actions    []Action
	Urgency    Urgency
	Timeout    int32 // ms, -1 = server default, 0 = never expire
}

// ServerInfo is the reply to GetServerInformation.
type ServerInfo struct {
	Name        string `json:"name"`
	Vendor      string `json:"vendor"`
	Version     string `json:"version"`
	SpecVersion string `json:"spec_version"`
}

// CloseReason is the reason code carried by NotificationClosed.
type CloseReason uint32

const (
	ReasonExpired   CloseReason = 1
	ReasonDismissed CloseReason = 2
	ReasonClosed    CloseReason = 3
	ReasonUndefined CloseReason = 4
)

// SignalKind distinguishes the two inbound signals of the service.
type SignalKind int

const (
	SignalClosed SignalKind = iota + 1
	SignalActionInvoked
)

// Signal is an inbound event from the notification service. It may refer to
// notifications sent by other processes.
type Signal struct {
	Kind   SignalKind
	ID     uint32
	Reason CloseReason // SignalClosed only
	Action string      // SignalActionInvoked only
}

// Capabilities is the set of tokens advertised by the server.
type Capabilities map[string]struct{}

// NewCapabilities builds a capability set from the server's token list.
func NewCapabilities(tokens ...string) Capabilities {
	caps := make(Capabilities, len(tokens))
	for _, t := range tokens {
		caps[t] = struct{}{}
	}
	return caps
}

// Has reports whether the server advertised token.
func (c Capabilities) Has(token string) bool {
	_, ok := c[token]
	return ok
}

// List returns the tokens in sorted order.
func (c Capabilities) List() []string {
	out := make([]string, 0, len(c))
	for t := range c {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
