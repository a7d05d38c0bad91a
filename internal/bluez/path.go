// Package bluez is a narrow capability facade over BlueZ's D-Bus API:
// managed-object enumeration, property subscriptions, GATT notify
// start/stop, write-without-response, adapter configuration, and
// advertisement/pairing-agent registration. Other packages in this
// module also import github.com/godbus/dbus/v5, for object paths and
// for exporting their own D-Bus objects.
package bluez

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	BusName    = "org.bluez"
	RootPath   = dbus.ObjectPath("/")
	adapterPfx = "/org/bluez/"
)

// AddrFromPath extracts a MAC address from a device object path, e.g.
// /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF -> AA:BB:CC:DD:EE:FF.
func AddrFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/")
	if i < 0 {
		return ""
	}
	s = s[i+1:]
	if !strings.HasPrefix(s, "dev_") {
		return ""
	}
	s = s[len("dev_"):]
	return strings.ReplaceAll(s, "_", ":")
}

// DeviceOwnerPath returns the object path of the device that owns a
// characteristic or service path — its nearest dev_* ancestor. The
// scanner uses this to derive a device record key from a characteristic
// path.
func DeviceOwnerPath(charPath dbus.ObjectPath) dbus.ObjectPath {
	parts := strings.Split(string(charPath), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.HasPrefix(parts[i], "dev_") {
			return dbus.ObjectPath(strings.Join(parts[:i+1], "/"))
		}
	}
	return ""
}
