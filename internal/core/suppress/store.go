// Package suppress manages the "don't show again" marker files. A marker's
// presence in any configuration directory on the XDG search path silences
// the matching condition until the user removes it.
package suppress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/colonyops/pmicmon/internal/core/power"
)

// Namespace is the per-application directory under each config dir.
const Namespace = "pmicmon"

const defaultSystemConfigDirs = "/etc/xdg"

// Marker is a marker file found on disk.
type Marker struct {
	Condition power.Condition `json:"-"`
	Key       string          `json:"condition"`
	Path      string          `json:"path"`
	User      bool            `json:"user"`
}

// Store checks and creates marker files. Markers are always written to the
// user config dir but honored in every dir on the search path.
type Store struct {
	userDir    string
	systemDirs []string
}

// NewStore creates a store over the given config directories. The namespace
// is appended internally.
func NewStore(userDir string, systemDirs []string) *Store {
	return &Store{userDir: userDir, systemDirs: systemDirs}
}

// FromEnv resolves the config directories from XDG_CONFIG_HOME and
// XDG_CONFIG_DIRS.
func FromEnv(getenv func(string) string) *Store {
	return NewStore(UserConfigDir(getenv), SystemConfigDirs(getenv))
}

// UserConfigDir returns $XDG_CONFIG_HOME, falling back to ~/.config.
func UserConfigDir(getenv func(string) string) string {
	if dir := getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// SystemConfigDirs splits $XDG_CONFIG_DIRS, falling back to /etc/xdg.
func SystemConfigDirs(getenv func(string) string) []string {
	raw := getenv("XDG_CONFIG_DIRS")
	if raw == "" {
		raw = defaultSystemConfigDirs
	}
	var dirs []string
	for _, d := range strings.Split(raw, ":") {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// SearchPath returns the namespaced directories consulted for markers, user
// dir first.
func (s *Store) SearchPath() []string {
	dirs := make([]string, 0, len(s.systemDirs)+1)
	dirs = append(dirs, filepath.Join(s.userDir, Namespace))
	for _, d := range s.systemDirs {
		dirs = append(dirs, filepath.Join(d, Namespace))
	}
	return dirs
}

// UserPath is where Suppress writes the marker for c.
func (s *Store) UserPath(c power.Condition) string {
	return filepath.Join(s.userDir, Namespace, c.Marker())
}

// IsSuppressed reports whether a marker for c exists anywhere on the search
// path.
func (s *Store) IsSuppressed(c power.Condition) bool {
	for _, dir := range s.SearchPath() {
		if _, err := os.Stat(filepath.Join(dir, c.Marker())); err == nil {
			return true
		}
	}
	return false
}

// Suppress creates the user marker for c. Existing markers are left alone.
func (s *Store) Suppress(c power.Condition) error {
	path := s.UserPath(c)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create marker %s: %w", path, err)
	}
	return f.Close()
}

// Clear removes the user marker for c. Markers in system dirs are not
// touched. A missing marker is not an error.
func (s *Store) Clear(c power.Condition) error {
	err := os.Remove(s.UserPath(c))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker: %w", err)
	}
	return nil
}

// Markers lists every marker present on the search path.
func (s *Store) Markers() []Marker {
	var out []Marker
	for i, dir := range s.SearchPath() {
		for _, c := range power.All() {
			path := filepath.Join(dir, c.Marker())
			if _, err := os.Stat(path); err != nil {
				continue
			}
			out = append(out, Marker{Condition: c, Key: c.String(), Path: path, User: i == 0})
		}
	}
	return out
}

// ConditionForMarker maps a marker file name back to its condition.
func ConditionForMarker(name string) (power.Condition, bool) {
	base := filepath.Base(name)
	for _, c := range power.All() {
		if c.Marker() == base {
			return c, true
		}
	}
	return 0, false
}
