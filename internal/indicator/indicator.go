// Package indicator drives an optional "charging throttled" output line.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package indicator

// Indicator shows whether a charge limit below the unrestricted current is
// in force.
type Indicator interface {
	// Set drives the line active (true) or inactive (false).
	Set(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO chip used when none is configured.
const DefaultChip = "gpiochip0"
