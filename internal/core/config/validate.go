package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"github.com/hay-kot/criterio"
)

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if err := referenceURL(c.ReferenceURL); err != nil {
		errs = errs.Append("reference_url", err)
	}
	if c.NotificationTimeout < -1 {
		errs = errs.Append("notification_timeout", fmt.Errorf("must be -1 or greater, got %d", c.NotificationTimeout))
	}
	if strings.TrimSpace(c.BrowserCommand) == "" {
		errs = errs.Append("browser_command", errors.New("cannot be empty"))
	}
	if c.Readiness.Timeout < 0 {
		errs = errs.Append("readiness.timeout", fmt.Errorf("must be positive, got %s", c.Readiness.Timeout))
	}
	if c.Readiness.Interval <= 0 {
		errs = errs.Append("readiness.interval", fmt.Errorf("must be positive, got %s", c.Readiness.Interval))
	} else if c.Readiness.Interval > c.Readiness.Timeout {
		errs = errs.Append("readiness.interval", fmt.Errorf("must not exceed readiness.timeout (%s)", c.Readiness.Timeout))
	}
	if c.Power.MinCurrentMA == 0 {
		errs = errs.Append("power.min_current_ma", errors.New("must be greater than 0"))
	}
	if c.Monitor.UndervoltSensor == "" {
		errs = errs.Append("monitor.undervolt_sensor", errors.New("cannot be empty"))
	}
	if c.Monitor.UndervoltAlarm == "" {
		errs = errs.Append("monitor.undervolt_alarm", errors.New("cannot be empty"))
	}

	return errs.ToError()
}

// ValidateDeep performs Validate and then checks the filesystem: the config
// file itself, the browser command and the status and sysfs directories.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("browser_command", c.BrowserCommand, executableExists),
		criterio.Run("power.status_dir", c.Power.StatusDir, isDirectoryOrNotExist),
		criterio.Run("monitor.sysfs_root", c.Monitor.SysfsRoot, isDirectory),
	)
}

func referenceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https url, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// executableExists validates that the first word of a command line is on PATH.
func executableExists(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return fmt.Errorf("executable not found: %s", fields[0])
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
// The power status directory is absent on other boards.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func isDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
