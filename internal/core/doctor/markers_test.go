package doctor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/pmicmon/internal/core/power"
	"github.com/colonyops/pmicmon/internal/core/suppress"
)

func TestMarkersCheck_None(t *testing.T) {
	store := suppress.NewStore(t.TempDir(), []string{t.TempDir()})

	result := NewMarkersCheck(store).Run(context.Background())

	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
}

func TestMarkersCheck_ListsMarkers(t *testing.T) {
	store := suppress.NewStore(t.TempDir(), []string{t.TempDir()})
	require.NoError(t, store.Suppress(power.Undervoltage))
	require.NoError(t, store.Suppress(power.BrownoutReset))

	result := NewMarkersCheck(store).Run(context.Background())

	require.Len(t, result.Items, 2)
	labels := []string{result.Items[0].Label, result.Items[1].Label}
	assert.ElementsMatch(t, []string{"brownout", "undervolt"}, labels)
	for _, item := range result.Items {
		assert.Equal(t, StatusWarn, item.Status)
	}
}
