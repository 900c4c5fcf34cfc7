package notifier

import (
	"errors"

	"github.com/colonyops/pmicmon/internal/core/power"
)

// BootCondition decides which boot-time condition, if any, to report.
// A brownout reset takes precedence over an inadequate supply; suppressed
// conditions are skipped. ok is false when there is nothing to report,
// including on boards without the power status files. Other read errors
// are returned with ok false so callers can log them.
func BootCondition(reader *power.StatusReader, suppressed func(power.Condition) bool, minCurrentMA uint32) (power.Condition, bool, error) {
	status, err := reader.Read()
	if err != nil {
		if errors.Is(err, power.ErrPlatformAbsent) {
			return 0, false, nil
		}
		return 0, false, err
	}

	if status.Brownout && !suppressed(power.BrownoutReset) {
		return power.BrownoutReset, true, nil
	}
	if status.MaxCurrentMA < minCurrentMA && !suppressed(power.InadequatePSU) {
		return power.InadequatePSU, true, nil
	}
	return 0, false, nil
}
