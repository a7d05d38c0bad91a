package bluez

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Adapter wraps a BlueZ HCI adapter object (e.g. /org/bluez/hci0):
// alias/power/discoverable/pairable state, and advertisement/pairing-
// agent registration against LEAdvertisingManager1/AgentManager1.
type Adapter struct {
	bus  *Bus
	path dbus.ObjectPath
}

func (a *Adapter) obj() dbus.BusObject { return a.bus.Conn().Object(BusName, a.path) }

// Path returns the adapter's object path.
func (a *Adapter) Path() dbus.ObjectPath { return a.path }

// ListAdapters enumerates every HCI adapter BlueZ currently manages.
func ListAdapters(bus *Bus) ([]*Adapter, error) {
	objs, err := bus.GetManagedObjects()
	if err != nil {
		return nil, err
	}
	var out []*Adapter
	for path, ifaces := range objs {
		if _, ok := ifaces["org.bluez.Adapter1"]; !ok {
			continue
		}
		p := string(path)
		if strings.HasPrefix(p, adapterPfx) && strings.Count(p, "/") == 3 {
			out = append(out, &Adapter{bus: bus, path: path})
		}
	}
	return out, nil
}

// DefaultAdapter returns the first adapter ListAdapters yields. With
// more than one adapter, which one that is is not defined, since
// managed objects are walked in map order.
func DefaultAdapter(bus *Bus) (*Adapter, error) {
	adapters, err := ListAdapters(bus)
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("bluez: no adapter found")
	}
	return adapters[0], nil
}

func (a *Adapter) getProp(name string) (dbus.Variant, error) {
	return a.obj().GetProperty("org.bluez.Adapter1." + name)
}

func (a *Adapter) setProp(name string, value any) error {
	return a.obj().SetProperty("org.bluez.Adapter1."+name, dbus.MakeVariant(value))
}

// Address returns the adapter's MAC address.
func (a *Adapter) Address() (string, error) {
	v, err := a.getProp("Address")
	if err != nil {
		return "", fmt.Errorf("bluez: adapter address: %w", err)
	}
	return v.Value().(string), nil
}

// Alias returns the adapter's advertised name.
func (a *Adapter) Alias() (string, error) {
	v, err := a.getProp("Alias")
	if err != nil {
		return "", fmt.Errorf("bluez: adapter alias: %w", err)
	}
	return v.Value().(string), nil
}

// SetAlias sets the adapter's advertised name.
func (a *Adapter) SetAlias(alias string) error {
	if err := a.setProp("Alias", alias); err != nil {
		return fmt.Errorf("bluez: set adapter alias: %w", err)
	}
	return nil
}

// Powered reports whether the radio is powered on.
func (a *Adapter) Powered() (bool, error) {
	v, err := a.getProp("Powered")
	if err != nil {
		return false, fmt.Errorf("bluez: adapter powered: %w", err)
	}
	return v.Value().(bool), nil
}

// SetPowered powers the radio on or off.
func (a *Adapter) SetPowered(on bool) error {
	if err := a.setProp("Powered", on); err != nil {
		return fmt.Errorf("bluez: set adapter powered: %w", err)
	}
	return nil
}

// Discoverable reports whether the adapter is LE-discoverable.
func (a *Adapter) Discoverable() (bool, error) {
	v, err := a.getProp("Discoverable")
	if err != nil {
		return false, fmt.Errorf("bluez: adapter discoverable: %w", err)
	}
	return v.Value().(bool), nil
}

// SetDiscoverable sets LE-discoverable state.
func (a *Adapter) SetDiscoverable(on bool) error {
	if err := a.setProp("Discoverable", on); err != nil {
		return fmt.Errorf("bluez: set adapter discoverable: %w", err)
	}
	return nil
}

// Pairable reports whether the adapter accepts pairing requests.
func (a *Adapter) Pairable() (bool, error) {
	v, err := a.getProp("Pairable")
	if err != nil {
		return false, fmt.Errorf("bluez: adapter pairable: %w", err)
	}
	return v.Value().(bool), nil
}

// SetPairable sets whether the adapter accepts pairing requests.
func (a *Adapter) SetPairable(on bool) error {
	if err := a.setProp("Pairable", on); err != nil {
		return fmt.Errorf("bluez: set adapter pairable: %w", err)
	}
	return nil
}

// RegisterAdvertisement registers an exported LEAdvertisement1 object
// with LEAdvertisingManager1 on this adapter.
func (a *Adapter) RegisterAdvertisement(advPath dbus.ObjectPath) error {
	opts := map[string]dbus.Variant{}
	call := a.obj().Call("org.bluez.LEAdvertisingManager1.RegisterAdvertisement", 0, advPath, opts)
	if call.Err != nil {
		return fmt.Errorf("bluez: RegisterAdvertisement: %w", call.Err)
	}
	return nil
}

// UnregisterAdvertisement unregisters a previously registered
// advertisement object.
func (a *Adapter) UnregisterAdvertisement(advPath dbus.ObjectPath) error {
	call := a.obj().Call("org.bluez.LEAdvertisingManager1.UnregisterAdvertisement", 0, advPath)
	if call.Err != nil {
		return fmt.Errorf("bluez: UnregisterAdvertisement: %w", call.Err)
	}
	return nil
}

// RegisterAgent registers an exported Agent1 object with
// org.bluez.AgentManager1 using the given capability string (e.g.
// "DisplayYesNo") and requests it as the default agent.
func (a *Adapter) RegisterAgent(agentPath dbus.ObjectPath, capability string) error {
	root := a.bus.Conn().Object(BusName, RootPath)
	if call := root.Call("org.bluez.AgentManager1.RegisterAgent", 0, agentPath, capability); call.Err != nil {
		return fmt.Errorf("bluez: RegisterAgent: %w", call.Err)
	}
	if call := root.Call("org.bluez.AgentManager1.RequestDefaultAgent", 0, agentPath); call.Err != nil {
		return fmt.Errorf("bluez: RequestDefaultAgent: %w", call.Err)
	}
	return nil
}

// UnregisterAgent unregisters a previously registered agent object.
func (a *Adapter) UnregisterAgent(agentPath dbus.ObjectPath) error {
	root := a.bus.Conn().Object(BusName, RootPath)
	if call := root.Call("org.bluez.AgentManager1.UnregisterAgent", 0, agentPath); call.Err != nil {
		return fmt.Errorf("bluez: UnregisterAgent: %w", call.Err)
	}
	return nil
}
