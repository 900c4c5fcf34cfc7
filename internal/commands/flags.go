package commands

import (
	"os"
	"path/filepath"

	"github.com/colonyops/pmicmon/internal/core/config"
)

const appDir = "pmicmon"

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, appDir, "config.yaml")
}

// DefaultLogFile returns the default log file path using XDG_STATE_HOME
// (defaults to ~/.local/state/pmicmon/pmicmon.log).
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, _ := os.UserHomeDir()
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, appDir, "pmicmon.log")
}

// config returns the loaded config, falling back to defaults when the
// Before hook did not run.
func (f *Flags) config() *config.Config {
	if f.Config == nil {
		cfg := config.DefaultConfig()
		f.Config = &cfg
	}
	return f.Config
}
