// Package health provides battery status notifications with hardware
// abstraction. Readers are polled by the daemon's main loop; the controller
// deduplicates repeated statuses, so readers report every poll.
package health

import (
	"strings"

	"github.com/sweeney/charge-limiter/internal/logic"
)

// Reader reads the coarse battery status.
type Reader interface {
	// Read returns the current battery status.
	Read() (logic.BatteryStatus, error)

	// Close releases resources.
	Close() error
}

// ParseStatus maps a power_supply status string to a BatteryStatus.
// Unrecognised strings map to StatusUnknown.
func ParseStatus(s string) logic.BatteryStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charging":
		return logic.StatusCharging
	case "discharging":
		return logic.StatusDischarging
	case "not charging":
		return logic.StatusNotCharging
	case "full":
		return logic.StatusFull
	default:
		return logic.StatusUnknown
	}
}
