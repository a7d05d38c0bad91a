package advertising

import (
	"sync"

	"github.com/godbus/dbus/v5"
)

// fakeAdapter is an in-memory Adapter used by tests in place of a real
// BlueZ adapter object.
type fakeAdapter struct {
	mu sync.Mutex

	address string

	alias        string
	powered      bool
	discoverable bool
	pairable     bool

	registeredAdv   []dbus.ObjectPath
	registeredAgent []dbus.ObjectPath

	powerErr error
}

func (a *fakeAdapter) Address() (string, error) { return a.address, nil }

func (a *fakeAdapter) Alias() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alias, nil
}

func (a *fakeAdapter) SetAlias(alias string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alias = alias
	return nil
}

func (a *fakeAdapter) Powered() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.powered, nil
}

func (a *fakeAdapter) SetPowered(on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.powerErr != nil {
		return a.powerErr
	}
	a.powered = on
	return nil
}

func (a *fakeAdapter) Discoverable() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discoverable, nil
}

func (a *fakeAdapter) SetDiscoverable(on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discoverable = on
	return nil
}

func (a *fakeAdapter) Pairable() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pairable, nil
}

func (a *fakeAdapter) SetPairable(on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pairable = on
	return nil
}

func (a *fakeAdapter) RegisterAdvertisement(advPath dbus.ObjectPath) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registeredAdv = append(a.registeredAdv, advPath)
	return nil
}

func (a *fakeAdapter) UnregisterAdvertisement(advPath dbus.ObjectPath) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, p := range a.registeredAdv {
		if p == advPath {
			a.registeredAdv = append(a.registeredAdv[:i], a.registeredAdv[i+1:]...)
			break
		}
	}
	return nil
}

func (a *fakeAdapter) RegisterAgent(agentPath dbus.ObjectPath, capability string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registeredAgent = append(a.registeredAgent, agentPath)
	return nil
}

func (a *fakeAdapter) UnregisterAgent(agentPath dbus.ObjectPath) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, p := range a.registeredAgent {
		if p == agentPath {
			a.registeredAgent = append(a.registeredAgent[:i], a.registeredAgent[i+1:]...)
			break
		}
	}
	return nil
}

// fakePairingController is an in-memory pairingController used by
// Manager tests so EnableAdvertising/DisableAdvertising's auto-enable
// bookkeeping can be observed without a real PairingManager.
type fakePairingController struct {
	mu         sync.Mutex
	registered bool
	auto       bool
	enableErr  error
	disableErr error
}

func (f *fakePairingController) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

func (f *fakePairingController) Enable(automatic bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enableErr != nil {
		return f.enableErr
	}
	f.registered = true
	f.auto = automatic
	return nil
}

func (f *fakePairingController) AutoEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered && f.auto
}

func (f *fakePairingController) Disable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disableErr != nil {
		return f.disableErr
	}
	f.registered = false
	f.auto = false
	return nil
}
