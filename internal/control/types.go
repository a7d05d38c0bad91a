// Package control implements the outward D-Bus control surface (spec
// §6): the ancs4linux.Observer and ancs4linux.Advertising named
// services that let other processes drive the notification engine and
// the advertiser/pairing engine.
package control

import "github.com/godbus/dbus/v5"

// requestBusName claims a well-known bus name, failing loudly if it is
// already owned rather than queuing behind another instance.
func requestBusName(conn *dbus.Conn, name string) error {
	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errBusNameTaken(name)
	}
	return nil
}

type errBusNameTaken string

func (e errBusNameTaken) Error() string { return "control: bus name already owned: " + string(e) }
