package health

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/sweeney/charge-limiter/internal/logic"
)

const (
	upowerService  = "org.freedesktop.UPower"
	upowerDisplay  = "/org/freedesktop/UPower/devices/DisplayDevice"
	upowerStateKey = "org.freedesktop.UPower.Device.State"
)

// UPower device states.
const (
	upStateUnknown          uint32 = 0
	upStateCharging         uint32 = 1
	upStateDischarging      uint32 = 2
	upStateEmpty            uint32 = 3
	upStateFullyCharged     uint32 = 4
	upStatePendingCharge    uint32 = 5
	upStatePendingDischarge uint32 = 6
)

// UPowerReader reads the display device state from UPower on the system bus.
type UPowerReader struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewUPowerReader connects to the system bus.
func NewUPowerReader() (*UPowerReader, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return &UPowerReader{
		conn: conn,
		obj:  conn.Object(upowerService, dbus.ObjectPath(upowerDisplay)),
	}, nil
}

// Read returns the battery status.
func (r *UPowerReader) Read() (logic.BatteryStatus, error) {
	v, err := r.obj.GetProperty(upowerStateKey)
	if err != nil {
		return logic.StatusUnknown, fmt.Errorf("upower state: %w", err)
	}
	state, ok := v.Value().(uint32)
	if !ok {
		return logic.StatusUnknown, fmt.Errorf("upower state: unexpected type %s", v.Signature())
	}
	return upowerStatus(state), nil
}

// Close disconnects from the bus.
func (r *UPowerReader) Close() error {
	return r.conn.Close()
}

func upowerStatus(state uint32) logic.BatteryStatus {
	switch state {
	case upStateCharging:
		return logic.StatusCharging
	case upStateDischarging, upStateEmpty, upStatePendingDischarge:
		return logic.StatusDischarging
	case upStatePendingCharge:
		return logic.StatusNotCharging
	case upStateFullyCharged:
		return logic.StatusFull
	default:
		return logic.StatusUnknown
	}
}
