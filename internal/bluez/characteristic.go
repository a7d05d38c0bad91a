package bluez

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Characteristic wraps a single GATT characteristic object path.
type Characteristic struct {
	bus  *Bus
	path dbus.ObjectPath
}

func (c *Characteristic) obj() dbus.BusObject { return c.bus.Conn().Object(BusName, c.path) }

// Path returns the characteristic's object path.
func (c *Characteristic) Path() dbus.ObjectPath { return c.path }

// NewCharacteristic wraps an already-resolved characteristic path.
func NewCharacteristic(bus *Bus, path dbus.ObjectPath) *Characteristic {
	return &Characteristic{bus: bus, path: path}
}

// WriteValue writes without waiting for a response, as ANCS's Control
// Point characteristic requires.
func (c *Characteristic) WriteValue(data []byte) error {
	opts := map[string]any{"type": "command"}
	if err := c.obj().Call("org.bluez.GattCharacteristic1.WriteValue", 0, data, opts).Err; err != nil {
		return fmt.Errorf("bluez: WriteValue: %w", err)
	}
	return nil
}

// StartNotify subscribes to value-changed notifications on the
// characteristic.
func (c *Characteristic) StartNotify() error {
	if err := c.obj().Call("org.bluez.GattCharacteristic1.StartNotify", 0).Err; err != nil {
		return fmt.Errorf("bluez: StartNotify: %w", err)
	}
	return nil
}

// StopNotify cancels a previous StartNotify.
func (c *Characteristic) StopNotify() error {
	if err := c.obj().Call("org.bluez.GattCharacteristic1.StopNotify", 0).Err; err != nil {
		return fmt.Errorf("bluez: StopNotify: %w", err)
	}
	return nil
}

// OnValueChanged subscribes fn to be called with the new Value payload
// whenever BlueZ reports a PropertiesChanged with a Value key on this
// characteristic. The returned Subscription's Close detaches fn.
func (c *Characteristic) OnValueChanged(fn func([]byte)) *Subscription {
	return c.bus.WatchProperties(c.path, func(pc PropertyChange) {
		if pc.Interface != "org.bluez.GattCharacteristic1" {
			return
		}
		v, ok := pc.Changed["Value"]
		if !ok {
			return
		}
		b, ok := v.Value().([]byte)
		if !ok || len(b) == 0 {
			return
		}
		pkt := make([]byte, len(b))
		copy(pkt, b)
		fn(pkt)
	})
}
