package control

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/kiwiz/ancs4linux/internal/advertising"
	"github.com/sirupsen/logrus"
)

const advertisingPath = dbus.ObjectPath("/")
const advertisingInterface = "ancs4linux.Advertising"

// AdvertisingServer exports ancs4linux.Advertising at "/": GetAllHci,
// EnableAdvertising, DisableAdvertising, EnablePairing,
// DisablePairing, and the PairingCode signal relayed from the pairing
// agent's request_confirmation callback.
type AdvertisingServer struct {
	conn    *dbus.Conn
	manager *advertising.Manager
	pairing *advertising.PairingManager
	log     *logrus.Entry
}

// NewAdvertisingServer exports the Advertising object and claims
// busName.
func NewAdvertisingServer(conn *dbus.Conn, busName string, manager *advertising.Manager, pairing *advertising.PairingManager, log *logrus.Entry) (*AdvertisingServer, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &AdvertisingServer{conn: conn, manager: manager, pairing: pairing, log: log}
	if err := conn.Export(s, advertisingPath, advertisingInterface); err != nil {
		return nil, fmt.Errorf("control: export advertising methods: %w", err)
	}
	if err := requestBusName(conn, busName); err != nil {
		return nil, fmt.Errorf("control: claim %s: %w", busName, err)
	}
	return s, nil
}

// GetAllHci is the ancs4linux.Advertising.GetAllHci D-Bus method.
func (s *AdvertisingServer) GetAllHci() ([]string, *dbus.Error) {
	addrs, err := s.manager.GetAllHci()
	if err != nil {
		return nil, dbus.MakeFailedError(err)
	}
	return addrs, nil
}

// EnableAdvertising is the ancs4linux.Advertising.EnableAdvertising
// D-Bus method.
func (s *AdvertisingServer) EnableAdvertising(address, name string) *dbus.Error {
	if err := s.manager.EnableAdvertising(address, name); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// DisableAdvertising is the ancs4linux.Advertising.DisableAdvertising
// D-Bus method.
func (s *AdvertisingServer) DisableAdvertising(address string) *dbus.Error {
	if err := s.manager.DisableAdvertising(address); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// EnablePairing is the ancs4linux.Advertising.EnablePairing D-Bus
// method: an explicit (non-automatic) pairing-agent enable.
func (s *AdvertisingServer) EnablePairing() *dbus.Error {
	if err := s.pairing.Enable(false); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// DisablePairing is the ancs4linux.Advertising.DisablePairing D-Bus
// method.
func (s *AdvertisingServer) DisablePairing() *dbus.Error {
	if err := s.pairing.Disable(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// PairingCode implements advertising.PairingCodeSink by emitting the
// PairingCode signal.
func (s *AdvertisingServer) PairingCode(pin string) {
	if err := s.conn.Emit(advertisingPath, advertisingInterface+".PairingCode", pin); err != nil {
		s.log.WithError(err).Warn("control: emit PairingCode failed")
	}
}
