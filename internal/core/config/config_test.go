package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Equal(t, &want, cfg)
	assert.Equal(t, "https://rptl.io/rpi5-power-supply-info", cfg.ReferenceURL)
	assert.Equal(t, int32(-1), cfg.NotificationTimeout)
	assert.Equal(t, 60*time.Second, cfg.Readiness.Timeout)
	assert.Equal(t, time.Second, cfg.Readiness.Interval)
	assert.Equal(t, uint32(5000), cfg.Power.MinCurrentMA)
	assert.True(t, cfg.Monitor.WatchesMarkers())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "xdg-open", cfg.BrowserCommand)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
title: Bench PSU
app_icon: dialog-warning
notification_timeout: 0
browser_command: firefox --new-window
readiness:
  timeout: 2m
  interval: 500ms
power:
  min_current_ma: 3000
monitor:
  sysfs_root: /tmp/sys
  watch_markers: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Bench PSU", cfg.Title)
	assert.Equal(t, "dialog-warning", cfg.AppIcon)
	assert.Equal(t, int32(0), cfg.NotificationTimeout)
	assert.Equal(t, "firefox --new-window", cfg.BrowserCommand)
	assert.Equal(t, 2*time.Minute, cfg.Readiness.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Readiness.Interval)
	assert.Equal(t, uint32(3000), cfg.Power.MinCurrentMA)
	assert.Equal(t, "/tmp/sys", cfg.Monitor.SysfsRoot)
	assert.False(t, cfg.Monitor.WatchesMarkers())

	// untouched fields keep their defaults
	assert.Equal(t, "/proc/device-tree/chosen/power", cfg.Power.StatusDir)
	assert.Equal(t, "rpi_volt", cfg.Monitor.UndervoltSensor)
	assert.Equal(t, ReferenceURL, cfg.ReferenceURL)
}

func TestLoad_ParseError(t *testing.T) {
	path := writeConfig(t, "readiness: [not, a, map]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "reference_url: ftp://example.com/info\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), "reference_url")
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Title:          "custom",
		BrowserCommand: "open",
		Power:          PowerConfig{MinCurrentMA: 1000},
	}
	cfg.applyDefaults()

	assert.Equal(t, "custom", cfg.Title)
	assert.Equal(t, "open", cfg.BrowserCommand)
	assert.Equal(t, uint32(1000), cfg.Power.MinCurrentMA)
	assert.Equal(t, 60*time.Second, cfg.Readiness.Timeout)
	assert.Equal(t, "in0_lcrit_alarm", cfg.Monitor.UndervoltAlarm)
}
