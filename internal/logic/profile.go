package logic

import (
	"fmt"
	"strings"
)

// FastProfileMarker marks a wired charger type string as fast (PPS) charging.
const FastProfileMarker = "[PD_PPS]"

// CurrentLimitTable maps a limit index to a charge current in mA.
// Index 0 is unrestricted; higher indices are tighter.
var CurrentLimitTable = [...]int{
	9000, 8500, 8000, 7500, 7000, 6500,
	6000, 5500, 5000, 4500, 4000, 3500,
	3000, 2500, 2400, 2000, 1600, 1500,
	1200, 1000, 500, 0,
}

// Unrestricted is the current applied below every threshold.
var Unrestricted = CurrentLimitTable[0]

// Threshold is one step of a profile staircase.
type Threshold struct {
	TempMilliC int
	LimitIndex int
}

// Profile is a staircase plus the sensors sampled while it is active.
type Profile struct {
	Kind            ChargerKind
	Thresholds      []Threshold
	PreferredSensor string
	FallbackSensor  string
}

var (
	FastWiredProfile = Profile{
		Kind: ChargerFastWired,
		Thresholds: []Threshold{
			{35000, 4}, {37000, 6}, {39000, 10}, {41000, 12}, {43000, 15}, {48000, 21},
		},
		PreferredSensor: "shell_front",
		FallbackSensor:  "battery",
	}
	WiredProfile = Profile{
		Kind: ChargerWired,
		Thresholds: []Threshold{
			{35000, 8}, {37000, 12}, {39000, 15}, {41000, 16}, {48000, 21},
		},
		PreferredSensor: "shell_front",
		FallbackSensor:  "battery",
	}
	WirelessProfile = Profile{
		Kind: ChargerWireless,
		Thresholds: []Threshold{
			{35000, 15}, {41000, 19}, {48000, 21},
		},
		PreferredSensor: "shell_back",
		FallbackSensor:  "wls-therm",
	}
)

// SelectProfile picks the profile for the given presence flags. Wired wins
// over wireless. ok is false when neither modality is present.
func SelectProfile(wired, wireless bool, wiredType string) (p Profile, ok bool) {
	switch {
	case wired && strings.Contains(wiredType, FastProfileMarker):
		return FastWiredProfile, true
	case wired:
		return WiredProfile, true
	case wireless:
		return WirelessProfile, true
	}
	return Profile{}, false
}

// Validate checks that thresholds are strictly increasing and that every
// limit index points into CurrentLimitTable.
func (p Profile) Validate() error {
	for i, t := range p.Thresholds {
		if t.LimitIndex < 0 || t.LimitIndex >= len(CurrentLimitTable) {
			return fmt.Errorf("profile %s: threshold %d: limit index %d out of range", p.Kind, i, t.LimitIndex)
		}
		if i > 0 && t.TempMilliC <= p.Thresholds[i-1].TempMilliC {
			return fmt.Errorf("profile %s: threshold %d: %d not above %d", p.Kind, i, t.TempMilliC, p.Thresholds[i-1].TempMilliC)
		}
	}
	return nil
}
