// Package power describes the power conditions pmicmon warns about and reads
// the boot-time power status the firmware leaves in the device tree.
package power

import (
	"fmt"

	"github.com/colonyops/pmicmon/internal/core/notify"
)

// Condition is a power problem that can be reported to the user.
type Condition int

const (
	BrownoutReset Condition = iota + 1
	InadequatePSU
	Undervoltage
	Overcurrent
)

type conditionInfo struct {
	key       string
	message   string
	urgency   notify.Urgency
	recurring bool
}

var conditions = map[Condition]conditionInfo{
	BrownoutReset: {
		key:     "brownout",
		message: "Reset due to low power; please check your power supply",
		urgency: notify.UrgencyCritical,
	},
	InadequatePSU: {
		key:     "max_current",
		message: "This power supply is not capable of supplying 5A; power to peripherals will be restricted",
		urgency: notify.UrgencyNormal,
	},
	Undervoltage: {
		key:       "undervolt",
		message:   "Low voltage warning; please check your power supply",
		urgency:   notify.UrgencyCritical,
		recurring: true,
	},
	Overcurrent: {
		key:       "overcurrent",
		message:   "USB overcurrent; please check your connected USB devices",
		urgency:   notify.UrgencyCritical,
		recurring: true,
	},
}

// All returns every condition in declaration order.
func All() []Condition {
	return []Condition{BrownoutReset, InadequatePSU, Undervoltage, Overcurrent}
}

// ParseCondition maps a key such as "undervolt" back to its condition.
func ParseCondition(key string) (Condition, error) {
	for _, c := range All() {
		if conditions[c].key == key {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown condition %q", key)
}

// String returns the condition key, e.g. "max_current".
func (c Condition) String() string {
	if info, ok := conditions[c]; ok {
		return info.key
	}
	return fmt.Sprintf("condition(%d)", int(c))
}

// Message is the human-readable warning.
func (c Condition) Message() string {
	return conditions[c].message
}

func (c Condition) Urgency() notify.Urgency {
	return conditions[c].urgency
}

// Marker is the file name whose presence suppresses the condition.
func (c Condition) Marker() string {
	return c.String() + ".inhibit"
}

// Recurring reports whether the condition is monitored at runtime rather
// than checked once at boot.
func (c Condition) Recurring() bool {
	return conditions[c].recurring
}
