// Package config handles configuration loading and validation for pmicmon.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReferenceURL is the page opened by the "More information" action.
const ReferenceURL = "https://rptl.io/rpi5-power-supply-info"

// Config holds the application configuration.
type Config struct {
	Title               string          `yaml:"title"`
	AppName             string          `yaml:"app_name"`
	AppIcon             string          `yaml:"app_icon"`
	ReferenceURL        string          `yaml:"reference_url"`
	NotificationTimeout int32           `yaml:"notification_timeout"` // -1 lets the server decide, 0 never expires
	BrowserCommand      string          `yaml:"browser_command"`
	Readiness           ReadinessConfig `yaml:"readiness"`
	Power               PowerConfig     `yaml:"power"`
	Monitor             MonitorConfig   `yaml:"monitor"`
}

// ReadinessConfig bounds how long the notifier waits for the notification
// service to appear after login.
type ReadinessConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`
}

// PowerConfig locates the boot power status and sets the PSU threshold.
type PowerConfig struct {
	StatusDir    string `yaml:"status_dir"`
	MinCurrentMA uint32 `yaml:"min_current_ma"`
}

// MonitorConfig controls the runtime monitor.
type MonitorConfig struct {
	SysfsRoot       string `yaml:"sysfs_root"`
	UndervoltSensor string `yaml:"undervolt_sensor"` // hwmon "name" attribute to react to
	UndervoltAlarm  string `yaml:"undervolt_alarm"`  // hwmon alarm attribute
	WatchMarkers    *bool  `yaml:"watch_markers"`    // nil means true
}

// WatchesMarkers reports whether marker directories should be watched.
func (m MonitorConfig) WatchesMarkers() bool {
	return m.WatchMarkers == nil || *m.WatchMarkers
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Title:               "Raspberry Pi PMIC Monitor",
		ReferenceURL:        ReferenceURL,
		NotificationTimeout: -1,
		BrowserCommand:      "xdg-open",
		Readiness: ReadinessConfig{
			Timeout:  60 * time.Second,
			Interval: time.Second,
		},
		Power: PowerConfig{
			StatusDir:    "/proc/device-tree/chosen/power",
			MinCurrentMA: 5000,
		},
		Monitor: MonitorConfig{
			SysfsRoot:       "/sys",
			UndervoltSensor: "rpi_volt",
			UndervoltAlarm:  "in0_lcrit_alarm",
		},
	}
}

// Load reads configuration from the given path.
// If configPath is empty or doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Title == "" {
		c.Title = defaults.Title
	}
	if c.ReferenceURL == "" {
		c.ReferenceURL = defaults.ReferenceURL
	}
	if c.BrowserCommand == "" {
		c.BrowserCommand = defaults.BrowserCommand
	}
	if c.Readiness.Timeout == 0 {
		c.Readiness.Timeout = defaults.Readiness.Timeout
	}
	if c.Readiness.Interval == 0 {
		c.Readiness.Interval = defaults.Readiness.Interval
	}
	if c.Power.StatusDir == "" {
		c.Power.StatusDir = defaults.Power.StatusDir
	}
	if c.Power.MinCurrentMA == 0 {
		c.Power.MinCurrentMA = defaults.Power.MinCurrentMA
	}
	if c.Monitor.SysfsRoot == "" {
		c.Monitor.SysfsRoot = defaults.Monitor.SysfsRoot
	}
	if c.Monitor.UndervoltSensor == "" {
		c.Monitor.UndervoltSensor = defaults.Monitor.UndervoltSensor
	}
	if c.Monitor.UndervoltAlarm == "" {
		c.Monitor.UndervoltAlarm = defaults.Monitor.UndervoltAlarm
	}
}
