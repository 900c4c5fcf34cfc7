package doctor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/colonyops/pmicmon/internal/core/power"
)

// unameFunc is swapped in tests.
var unameFunc = unix.Uname

// PlatformCheck reports the boot power status of the board.
type PlatformCheck struct {
	reader       *power.StatusReader
	minCurrentMA uint32
}

// NewPlatformCheck creates a platform check over reader.
func NewPlatformCheck(reader *power.StatusReader, minCurrentMA uint32) *PlatformCheck {
	return &PlatformCheck{reader: reader, minCurrentMA: minCurrentMA}
}

func (c *PlatformCheck) Name() string {
	return "Platform"
}

func (c *PlatformCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	var uts unix.Utsname
	if err := unameFunc(&uts); err != nil {
		result.add("kernel", StatusWarn, fmt.Sprintf("uname failed: %v", err))
	} else {
		result.add("kernel", StatusPass, unix.ByteSliceToString(uts.Release[:])+" "+unix.ByteSliceToString(uts.Machine[:]))
	}

	status, err := c.reader.Read()
	switch {
	case errors.Is(err, power.ErrPlatformAbsent):
		result.add("power status", StatusWarn, fmt.Sprintf("%s not found; not a Raspberry Pi 5?", c.reader.Dir()))
		return result
	case err != nil:
		result.add("power status", StatusFail, err.Error())
		return result
	}

	if status.Brownout {
		result.add("last reset", StatusWarn, "brownout")
	} else {
		result.add("last reset", StatusPass, "not caused by low power")
	}

	detail := fmt.Sprintf("%d mA", status.MaxCurrentMA)
	if status.MaxCurrentMA < c.minCurrentMA {
		result.add("supply current", StatusWarn, fmt.Sprintf("%s (below %d mA)", detail, c.minCurrentMA))
	} else {
		result.add("supply current", StatusPass, detail)
	}

	return result
}
