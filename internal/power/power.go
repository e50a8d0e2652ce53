// Package power provides charger presence and charge current limit access
// with hardware abstraction. The sysfs implementation reads the platform's
// power_supply attributes; the fake allows testing without hardware.
package power

// Supply exposes the charger attributes the controller depends on.
type Supply interface {
	// WiredOnline reports whether a wired charger has power applied.
	WiredOnline() (bool, error)

	// WirelessOnline reports whether a wireless charger has power applied.
	WirelessOnline() (bool, error)

	// WiredType returns the wired charger type string, e.g. "SDP DCP [PD_PPS]".
	WiredType() (string, error)

	// AppliedLimit returns the charge current limit currently in force, in mA.
	AppliedLimit() (int, error)

	// SetLimit writes a new charge current limit in mA.
	SetLimit(mA int) error
}
