// Package advertising implements the advertiser + pairing-agent engine
// (spec C7): registering a constant-payload LEAdvertisement1 object per
// enabled adapter, snapshotting and restoring adapter state around it,
// and auto-enabling a DisplayYesNo pairing agent while any adapter is
// advertising.
package advertising

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/kiwiz/ancs4linux/internal/bluez"
	"github.com/sirupsen/logrus"
)

// ErrUnknownAdapter is returned when an address does not resolve to any
// known adapter.
var ErrUnknownAdapter = errors.New("advertising: unknown adapter")

// ErrNotAdvertising is returned by DisableAdvertising when the given
// address has no active advertisement.
var ErrNotAdvertising = errors.New("advertising: not advertising")

// advertisementPath is the fixed object path the LEAdvertisement1
// object is exported under; BlueZ only needs it unique per bus
// connection, not per adapter.
const advertisementPath = dbus.ObjectPath("/advertisement")

// manufacturerID / manufacturerBytes / serviceDataKey / serviceDataBytes
// are the constant identity-beacon payload spec.md §4.7 fixes: these
// values are not structurally interpreted by the phone.
const (
	manufacturerID  = 0xFFFF
	serviceDataKey  = "9999"
)

var (
	manufacturerBytes = []byte{0x50, 0xB0, 0x13, 0xF0}
	serviceDataBytes  = []byte{0x9E, 0x85, 0x39, 0x96}
)

// Adapter is the subset of *bluez.Adapter this package depends on:
// state getters/setters plus advertisement and agent registration.
// Defined as an interface so Manager and PairingManager can be driven
// by a fake in tests, mirroring internal/device's Characteristic/
// busGraph extraction.
type Adapter interface {
	Address() (string, error)
	Alias() (string, error)
	SetAlias(alias string) error
	Powered() (bool, error)
	SetPowered(on bool) error
	Discoverable() (bool, error)
	SetDiscoverable(on bool) error
	Pairable() (bool, error)
	SetPairable(on bool) error
	RegisterAdvertisement(advPath dbus.ObjectPath) error
	UnregisterAdvertisement(advPath dbus.ObjectPath) error
	RegisterAgent(agentPath dbus.ObjectPath, capability string) error
	UnregisterAgent(agentPath dbus.ObjectPath) error
}

// pairingController is the subset of *PairingManager Manager depends
// on, kept as an interface for the same reason as Adapter above.
type pairingController interface {
	Registered() bool
	Enable(automatic bool) error
	AutoEnabled() bool
	Disable() error
}

// hciState is a snapshot of the four adapter properties the advertiser
// mutates and must restore.
type hciState struct {
	alias        string
	powered      bool
	discoverable bool
	pairable     bool
}

// advertiserRecord tracks one adapter currently advertising.
type advertiserRecord struct {
	adapter Adapter
	saved   hciState
}

// Manager is the process-wide advertiser: a map of address ->
// advertiserRecord behind a single mutex, plus the reference-counted
// pairing agent.
type Manager struct {
	mu      sync.Mutex
	bus     *bluez.Bus
	active  map[string]*advertiserRecord
	pairing pairingController

	// findAdapter/ensureExported default to bus-backed implementations
	// below; tests override them with fakes so EnableAdvertising/
	// DisableAdvertising can be driven without a live D-Bus connection.
	findAdapter    func(address string) (Adapter, error)
	ensureExported func() error

	advExported bool
	log         *logrus.Entry
}

// NewManager builds an advertising Manager bound to bus. pairing is the
// PairingManager shared with the outward control surface (so
// request_confirmation can emit a PairingCode signal).
func NewManager(bus *bluez.Bus, pairing *PairingManager, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Manager{
		bus:     bus,
		active:  make(map[string]*advertiserRecord),
		pairing: pairing,
		log:     log,
	}
	m.findAdapter = m.findAdapterViaBus
	m.ensureExported = m.ensureAdvertisementExported
	return m
}

// ListAdapters enumerates adapters that declare both Adapter1 and
// LEAdvertisingManager1, returning their MAC addresses.
func (m *Manager) ListAdapters() ([]string, error) {
	objs, err := m.bus.GetManagedObjects()
	if err != nil {
		return nil, err
	}
	var addrs []string
	for _, ifaces := range objs {
		if _, ok := ifaces["org.bluez.Adapter1"]; !ok {
			continue
		}
		if _, ok := ifaces["org.bluez.LEAdvertisingManager1"]; !ok {
			continue
		}
		addr, _ := ifaces["org.bluez.Adapter1"]["Address"].Value().(string)
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// GetAllHci is the outward-facing alias for ListAdapters.
func (m *Manager) GetAllHci() ([]string, error) { return m.ListAdapters() }

func (m *Manager) findAdapterViaBus(address string) (Adapter, error) {
	adapters, err := bluez.ListAdapters(m.bus)
	if err != nil {
		return nil, err
	}
	for _, a := range adapters {
		addr, err := a.Address()
		if err == nil && addr == address {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, address)
}

func (m *Manager) ensureAdvertisementExported() error {
	if m.advExported {
		return nil
	}
	propsSpec := map[string]map[string]*prop.Prop{
		"org.bluez.LEAdvertisement1": {
			"Type":             {Value: "peripheral"},
			"IncludeTxPower":   {Value: true},
			"ManufacturerData": {Value: map[uint16]interface{}{manufacturerID: manufacturerBytes}},
			"ServiceData":      {Value: map[string]interface{}{serviceDataKey: serviceDataBytes}},
		},
	}
	if _, err := prop.Export(m.bus.Conn(), advertisementPath, propsSpec); err != nil {
		return fmt.Errorf("advertising: export LEAdvertisement1 properties: %w", err)
	}
	if err := m.bus.Conn().Export(advertisementObject{}, advertisementPath, "org.bluez.LEAdvertisement1"); err != nil {
		return fmt.Errorf("advertising: export LEAdvertisement1 methods: %w", err)
	}
	m.advExported = true
	return nil
}

// advertisementObject implements the one method BlueZ calls on an
// LEAdvertisement1 object: Release, when the advertisement is torn
// down from the bus side (adapter powered off, etc).
type advertisementObject struct{}

func (advertisementObject) Release() *dbus.Error { return nil }

// EnableAdvertising implements spec C7's enable_advertising.
func (m *Manager) EnableAdvertising(address, advertisedName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[address]; ok {
		if err := m.disableAdvertisingLocked(address); err != nil {
			return err
		}
	}

	adapter, err := m.findAdapter(address)
	if err != nil {
		return err
	}

	if err := m.ensureExported(); err != nil {
		return err
	}

	autoEnablePairing := !m.pairing.Registered() && len(m.active) == 0
	if autoEnablePairing {
		if err := m.pairing.Enable(true); err != nil {
			return fmt.Errorf("advertising: enable pairing agent: %w", err)
		}
	}

	saved, err := snapshotState(adapter)
	if err != nil {
		return err
	}

	if err := adapter.SetPowered(true); err == nil {
		if err := adapter.SetAlias(advertisedName); err != nil {
			m.log.WithError(err).Warn("advertising: set alias failed")
		}
		if err := adapter.SetPairable(true); err != nil {
			m.log.WithError(err).Warn("advertising: set pairable failed")
		}
		if err := adapter.SetDiscoverable(true); err != nil {
			m.log.WithError(err).Warn("advertising: set discoverable failed")
		}
	} else {
		return fmt.Errorf("advertising: power on adapter: %w", err)
	}

	if err := adapter.RegisterAdvertisement(advertisementPath); err != nil {
		return err
	}

	m.active[address] = &advertiserRecord{adapter: adapter, saved: saved}
	return nil
}

// DisableAdvertising implements spec C7's disable_advertising.
func (m *Manager) DisableAdvertising(address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disableAdvertisingLocked(address)
}

func (m *Manager) disableAdvertisingLocked(address string) error {
	rec, ok := m.active[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAdvertising, address)
	}

	if err := rec.adapter.UnregisterAdvertisement(advertisementPath); err != nil {
		m.log.WithError(err).Warn("advertising: unregister advertisement failed")
	}

	if err := rec.adapter.SetPowered(rec.saved.powered); err == nil {
		if err := rec.adapter.SetAlias(rec.saved.alias); err != nil {
			m.log.WithError(err).Warn("advertising: restore alias failed")
		}
		if err := rec.adapter.SetPairable(rec.saved.pairable); err != nil {
			m.log.WithError(err).Warn("advertising: restore pairable failed")
		}
		if err := rec.adapter.SetDiscoverable(rec.saved.discoverable); err != nil {
			m.log.WithError(err).Warn("advertising: restore discoverable failed")
		}
	} else {
		m.log.WithError(err).Warn("advertising: restore powered failed")
	}

	delete(m.active, address)

	if len(m.active) == 0 && m.pairing.AutoEnabled() {
		if err := m.pairing.Disable(); err != nil {
			m.log.WithError(err).Warn("advertising: auto-disable pairing agent failed")
		}
	}
	return nil
}

func snapshotState(a Adapter) (hciState, error) {
	alias, err := a.Alias()
	if err != nil {
		return hciState{}, err
	}
	powered, err := a.Powered()
	if err != nil {
		return hciState{}, err
	}
	discoverable, err := a.Discoverable()
	if err != nil {
		return hciState{}, err
	}
	pairable, err := a.Pairable()
	if err != nil {
		return hciState{}, err
	}
	return hciState{alias: alias, powered: powered, discoverable: discoverable, pairable: pairable}, nil
}
