// Package logic contains pure decision logic for thermal charge limiting.
// This package has NO external dependencies (no sysfs, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// BatteryStatus is the coarse battery status carried by a health notification.
type BatteryStatus int

const (
	StatusUnknown BatteryStatus = iota
	StatusCharging
	StatusDischarging
	StatusNotCharging
	StatusFull
)

func (s BatteryStatus) String() string {
	switch s {
	case StatusCharging:
		return "CHARGING"
	case StatusDischarging:
		return "DISCHARGING"
	case StatusNotCharging:
		return "NOT_CHARGING"
	case StatusFull:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

// ChargerKind identifies which threshold profile is active.
type ChargerKind string

const (
	ChargerNone      ChargerKind = ""
	ChargerFastWired ChargerKind = "FAST_WIRED"
	ChargerWired     ChargerKind = "WIRED"
	ChargerWireless  ChargerKind = "WIRELESS"
)

// State is the controller state.
type State string

const (
	StateIdle     State = "IDLE"
	StateLimiting State = "LIMITING"
)

// EventType represents something the controller did that is worth publishing.
type EventType string

const (
	EventLimitingStarted EventType = "LIMITING_STARTED"
	EventLimitingStopped EventType = "LIMITING_STOPPED"
	EventLimitChanged    EventType = "LIMIT_CHANGED"
	// EventLimitApplied reports the limit already in force when an
	// activation's first iteration needed no write.
	EventLimitApplied EventType = "LIMIT_APPLIED"
)

// Event is emitted by the controller on activation changes and limit writes.
type Event struct {
	Timestamp time.Time
	Type      EventType
	SessionID string
	Charger   ChargerKind
	// TempMilliC is the sampled temperature; zero when no sample was taken.
	TempMilliC int
	LimitMA    int
	PreviousMA int
	// Bracket is the index of the threshold that selected the limit, -1 if none.
	Bracket int
	// TempUnknown is set when no sensor resolved and the safest limit was applied.
	TempUnknown bool
}

// Session is the controller's view of the current charger session.
// It is a value type; copies are safe to hand to other goroutines.
type Session struct {
	ID               string
	WiredActive      bool
	WirelessActive   bool
	UsingFastProfile bool
	LimitingEnabled  bool
	LastStatus       BatteryStatus
	Charger          ChargerKind
}

// State derives the controller state from the session flags.
func (s Session) State() State {
	if s.LimitingEnabled {
		return StateLimiting
	}
	return StateIdle
}
