package health

import (
	"fmt"

	"github.com/sweeney/charge-limiter/internal/logic"
	"github.com/sweeney/charge-limiter/internal/sysfs"
)

// SysfsReader reads /sys/class/power_supply/battery/status.
type SysfsReader struct {
	fs *sysfs.FS
}

// NewSysfsReader creates a reader over fs.
func NewSysfsReader(fs *sysfs.FS) *SysfsReader {
	return &SysfsReader{fs: fs}
}

// Read returns the battery status.
func (r *SysfsReader) Read() (logic.BatteryStatus, error) {
	line, err := r.fs.ReadLine(sysfs.BatteryStatus)
	if err != nil {
		return logic.StatusUnknown, fmt.Errorf("battery status: %w", err)
	}
	return ParseStatus(line), nil
}

// Close is a no-op.
func (r *SysfsReader) Close() error {
	return nil
}
