package power

import "github.com/sweeney/charge-limiter/internal/sysfs"

// SysfsSupply reads and writes the power_supply and qcom-battery attributes.
type SysfsSupply struct {
	fs *sysfs.FS
}

// NewSysfsSupply creates a Supply backed by fs.
func NewSysfsSupply(fs *sysfs.FS) *SysfsSupply {
	return &SysfsSupply{fs: fs}
}

func (s *SysfsSupply) WiredOnline() (bool, error)    { return s.fs.ReadBool(sysfs.USBOnline) }
func (s *SysfsSupply) WirelessOnline() (bool, error) { return s.fs.ReadBool(sysfs.WirelessOnline) }
func (s *SysfsSupply) WiredType() (string, error)    { return s.fs.ReadLine(sysfs.USBType) }
func (s *SysfsSupply) AppliedLimit() (int, error)    { return s.fs.ReadInt(sysfs.ScenarioFCC) }
func (s *SysfsSupply) SetLimit(mA int) error         { return s.fs.WriteInt(sysfs.ScenarioFCC, mA) }
