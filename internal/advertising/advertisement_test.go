package advertising

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestManager(findAdapter func(address string) (Adapter, error), pairing pairingController) *Manager {
	return &Manager{
		active:         make(map[string]*advertiserRecord),
		pairing:        pairing,
		findAdapter:    findAdapter,
		ensureExported: func() error { return nil },
		log:            logrus.NewEntry(logrus.StandardLogger()),
	}
}

// TestEnableDisableAdvertisingRestoresSnapshottedState covers scenario 6:
// enabling advertising must snapshot the adapter's alias/powered/
// discoverable/pairable state, mutate it to the advertising beacon
// state, and disabling must restore exactly what was snapshotted.
func TestEnableDisableAdvertisingRestoresSnapshottedState(t *testing.T) {
	adapter := &fakeAdapter{
		address:      "AA:BB:CC:DD:EE:FF",
		alias:        "original-alias",
		powered:      false,
		discoverable: false,
		pairable:     false,
	}
	pairing := &fakePairingController{}
	m := newTestManager(func(address string) (Adapter, error) { return adapter, nil }, pairing)

	assert.Nil(t, m.EnableAdvertising(adapter.address, "My Phone Bridge"))

	assert.Equal(t, "My Phone Bridge", adapter.alias)
	assert.True(t, adapter.powered)
	assert.True(t, adapter.discoverable)
	assert.True(t, adapter.pairable)
	assert.Contains(t, adapter.registeredAdv, advertisementPath)

	assert.Nil(t, m.DisableAdvertising(adapter.address))

	assert.Equal(t, "original-alias", adapter.alias)
	assert.False(t, adapter.powered)
	assert.False(t, adapter.discoverable)
	assert.False(t, adapter.pairable)
	assert.NotContains(t, adapter.registeredAdv, advertisementPath)
}

func TestEnableAdvertisingUnknownAddressReturnsError(t *testing.T) {
	pairing := &fakePairingController{}
	m := newTestManager(func(address string) (Adapter, error) { return nil, ErrUnknownAdapter }, pairing)

	err := m.EnableAdvertising("00:00:00:00:00:00", "whatever")
	assert.ErrorIs(t, err, ErrUnknownAdapter)
}

func TestDisableAdvertisingNotActiveReturnsError(t *testing.T) {
	pairing := &fakePairingController{}
	m := newTestManager(func(address string) (Adapter, error) { return nil, nil }, pairing)

	err := m.DisableAdvertising("AA:BB:CC:DD:EE:FF")
	assert.ErrorIs(t, err, ErrNotAdvertising)
}

// TestEnableAdvertisingAutoEnablesPairingOnlyWhenNotAlreadyRegistered
// covers the pairing-agent reference counting: the first
// EnableAdvertising call with no registered agent auto-enables it, and
// the last matching DisableAdvertising auto-disables it again — but
// only if the registration was the automatic one.
func TestEnableAdvertisingAutoEnablesPairingOnlyWhenNotAlreadyRegistered(t *testing.T) {
	a1 := &fakeAdapter{address: "AA:AA:AA:AA:AA:AA"}
	a2 := &fakeAdapter{address: "BB:BB:BB:BB:BB:BB"}
	byAddr := map[string]Adapter{a1.address: a1, a2.address: a2}
	pairing := &fakePairingController{}
	m := newTestManager(func(address string) (Adapter, error) { return byAddr[address], nil }, pairing)

	assert.Nil(t, m.EnableAdvertising(a1.address, "one"))
	assert.True(t, pairing.Registered())
	assert.True(t, pairing.AutoEnabled())

	assert.Nil(t, m.EnableAdvertising(a2.address, "two"))
	assert.True(t, pairing.AutoEnabled(), "second advertiser must not re-enable or disturb the flag")

	assert.Nil(t, m.DisableAdvertising(a1.address))
	assert.True(t, pairing.Registered(), "agent stays registered while any advertisement is active")

	assert.Nil(t, m.DisableAdvertising(a2.address))
	assert.False(t, pairing.Registered(), "last active adapter disabling must auto-disable the agent")
}

// TestEnableAdvertisingDoesNotDisturbExplicitlyEnabledPairing covers
// the precedence spec.md §4.7/§9 requires: an explicitly-enabled
// pairing agent must survive EnableAdvertising/DisableAdvertising
// cycles untouched.
func TestEnableAdvertisingDoesNotDisturbExplicitlyEnabledPairing(t *testing.T) {
	adapter := &fakeAdapter{address: "AA:BB:CC:DD:EE:FF"}
	pairing := &fakePairingController{}
	assert.Nil(t, pairing.Enable(false)) // explicit enable, before any advertising starts

	m := newTestManager(func(address string) (Adapter, error) { return adapter, nil }, pairing)

	assert.Nil(t, m.EnableAdvertising(adapter.address, "name"))
	assert.False(t, pairing.AutoEnabled(), "advertiser must not claim an existing explicit registration as its own")

	assert.Nil(t, m.DisableAdvertising(adapter.address))
	assert.True(t, pairing.Registered(), "explicitly enabled agent must not be auto-disabled")
}
