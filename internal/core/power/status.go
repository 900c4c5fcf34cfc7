package power

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultStatusDir is where the firmware exposes the power status.
const DefaultStatusDir = "/proc/device-tree/chosen/power"

// ErrPlatformAbsent is returned when the status files do not exist, which
// means we are not running on a supported board.
var ErrPlatformAbsent = errors.New("power status not available on this platform")

const (
	resetFile       = "power_reset"
	legacyResetFile = "reset_event"
	maxCurrentFile  = "max_current"

	brownoutBit = 0x02
)

// Status is a snapshot of the boot-time power status.
type Status struct {
	Brownout     bool   `json:"brownout"`
	MaxCurrentMA uint32 `json:"max_current_ma"`
}

// StatusReader decodes the big-endian 32-bit status cells under dir.
type StatusReader struct {
	dir string
}

// NewStatusReader creates a reader rooted at dir. An empty dir uses
// DefaultStatusDir.
func NewStatusReader(dir string) *StatusReader {
	if dir == "" {
		dir = DefaultStatusDir
	}
	return &StatusReader{dir: dir}
}

// Dir returns the directory the reader looks in.
func (r *StatusReader) Dir() string {
	return r.dir
}

// ResetBrownout reports whether the last reset was caused by a brownout.
// The reset cell was renamed between firmware releases, so the legacy name
// is tried when the current one is missing.
func (r *StatusReader) ResetBrownout() (bool, error) {
	value, err := r.readCell(resetFile)
	if errors.Is(err, ErrPlatformAbsent) {
		value, err = r.readCell(legacyResetFile)
	}
	if err != nil {
		return false, err
	}
	return value&brownoutBit != 0, nil
}

// MaxCurrent returns the current negotiated with the PSU in mA.
func (r *StatusReader) MaxCurrent() (uint32, error) {
	return r.readCell(maxCurrentFile)
}

// Read returns both values.
func (r *StatusReader) Read() (Status, error) {
	brownout, err := r.ResetBrownout()
	if err != nil {
		return Status{}, err
	}
	current, err := r.MaxCurrent()
	if err != nil {
		return Status{}, err
	}
	return Status{Brownout: brownout, MaxCurrentMA: current}, nil
}

func (r *StatusReader) readCell(name string) (uint32, error) {
	path := filepath.Join(r.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", path, ErrPlatformAbsent)
		}
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var buf [4]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}
