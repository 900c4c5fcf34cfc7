package doctor

import (
	"context"

	"github.com/colonyops/pmicmon/internal/core/suppress"
)

// MarkersCheck lists the conditions silenced with "don't show again".
type MarkersCheck struct {
	store *suppress.Store
}

// NewMarkersCheck creates a markers check.
func NewMarkersCheck(store *suppress.Store) *MarkersCheck {
	return &MarkersCheck{store: store}
}

func (c *MarkersCheck) Name() string {
	return "Suppressed Conditions"
}

func (c *MarkersCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	markers := c.store.Markers()
	if len(markers) == 0 {
		result.add("markers", StatusPass, "none")
		return result
	}

	for _, m := range markers {
		result.add(m.Key, StatusWarn, m.Path)
	}
	return result
}
