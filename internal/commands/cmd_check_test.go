package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/pmicmon/internal/core/config"
	"github.com/colonyops/pmicmon/internal/core/power"
)

func TestCheck_Brownout(t *testing.T) {
	te := newTestEnv(t)
	te.writeCell(t, "power_reset", 0x02)
	te.writeCell(t, "max_current", 3000)

	require.NoError(t, te.run(t, "check"))

	out := te.stdout.String()
	assert.Contains(t, out, "Reset due to low power")
	assert.NotContains(t, out, "5A", "brownout wins over an inadequate supply")
	assert.Contains(t, out, config.ReferenceURL)
	assert.Contains(t, out, "pmicmon suppress add brownout")
	assert.True(t, strings.HasPrefix(out, "\n"))
}

func TestCheck_InadequatePSU(t *testing.T) {
	te := newTestEnv(t)
	te.writeCell(t, "power_reset", 0)
	te.writeCell(t, "max_current", 3000)

	require.NoError(t, te.run(t, "check"))

	out := te.stdout.String()
	assert.Contains(t, out, "not capable of supplying")
	assert.Contains(t, out, "pmicmon suppress add max_current")
}

func TestCheck_Quiet(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, te *testEnv)
	}{
		{
			name: "healthy",
			setup: func(t *testing.T, te *testEnv) {
				te.writeCell(t, "power_reset", 0)
				te.writeCell(t, "max_current", 5000)
			},
		},
		{
			name:  "not a pi 5",
			setup: func(*testing.T, *testEnv) {},
		},
		{
			name: "corrupt status",
			setup: func(t *testing.T, te *testEnv) {
				require.NoError(t, os.WriteFile(filepath.Join(te.statusDir, "power_reset"), []byte{1}, 0o644))
			},
		},
		{
			name: "suppressed by system marker",
			setup: func(t *testing.T, te *testEnv) {
				te.writeCell(t, "power_reset", 0x02)
				te.writeCell(t, "max_current", 5000)
				dir := filepath.Join(te.env["XDG_CONFIG_DIRS"], "pmicmon")
				require.NoError(t, os.MkdirAll(dir, 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, power.BrownoutReset.Marker()), nil, 0o644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t)
			tt.setup(t, te)

			require.NoError(t, te.run(t, "check"))
			assert.Empty(t, te.stdout.String())
		})
	}
}

func TestWriteReport_Wraps(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, 40, power.InadequatePSU, config.ReferenceURL))

	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, config.ReferenceURL) {
			continue
		}
		assert.LessOrEqual(t, len(line), 40, "line %q", line)
	}
}

func TestWrapWidth_NonTerminal(t *testing.T) {
	assert.Equal(t, defaultWrapWidth, wrapWidth(&bytes.Buffer{}))
}
