package device

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/kiwiz/ancs4linux/internal/ancs"
	"github.com/kiwiz/ancs4linux/internal/bluez"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type fakeBusGraph struct {
	objects bluez.ManagedObjects
}

func (f *fakeBusGraph) WatchInterfacesAdded(fn func(dbus.ObjectPath, map[string]map[string]dbus.Variant)) {
}
func (f *fakeBusGraph) WatchInterfacesRemoved(fn func(dbus.ObjectPath, []string)) {}
func (f *fakeBusGraph) GetManagedObjects() (bluez.ManagedObjects, error)          { return f.objects, nil }
func (f *fakeBusGraph) WatchProperties(path dbus.ObjectPath, fn func(bluez.PropertyChange)) *bluez.Subscription {
	return bluez.NewSubscription(nil)
}

func newTestScanner() (*Scanner, *fakeSink) {
	sink := &fakeSink{}
	s := &Scanner{
		bus:      &fakeBusGraph{},
		sink:     sink,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		ctx:      context.Background(),
		records:  make(map[dbus.ObjectPath]*Record),
		propSubs: make(map[dbus.ObjectPath]*bluez.Subscription),
	}
	s.newCharacteristic = func(path dbus.ObjectPath) Characteristic {
		return &fakeCharacteristic{}
	}
	return s, sink
}

func TestScannerAssignsCharacteristicSlots(t *testing.T) {
	s, _ := newTestScanner()
	devicePath := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	nsPath := devicePath + "/service0/char0"

	s.processObject(nsPath, map[string]map[string]dbus.Variant{
		"org.bluez.GattCharacteristic1": {"UUID": dbus.MakeVariant(ancs.NotificationSourceUUID)},
	})

	s.mu.Lock()
	rec, ok := s.records[devicePath]
	s.mu.Unlock()
	if assert.True(t, ok) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.NotNil(t, rec.ns)
	}
}

func TestScannerIgnoresUnrelatedCharacteristics(t *testing.T) {
	s, _ := newTestScanner()
	devicePath := dbus.ObjectPath("/org/bluez/hci0/dev_AA")
	path := devicePath + "/service0/char0"

	s.processObject(path, map[string]map[string]dbus.Variant{
		"org.bluez.GattCharacteristic1": {"UUID": dbus.MakeVariant("0000180f-0000-1000-8000-00805f9b34fb")},
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.records)
}

func TestScannerProcessPropertyDrivesStateMachine(t *testing.T) {
	s, _ := newTestScanner()
	devicePath := dbus.ObjectPath("/org/bluez/hci0/dev_AA")

	s.processProperty(devicePath, "org.bluez.Device1", map[string]dbus.Variant{
		"Paired":    dbus.MakeVariant(true),
		"Connected": dbus.MakeVariant(true),
		"Alias":     dbus.MakeVariant("My Phone"),
	})

	s.mu.Lock()
	rec := s.records[devicePath]
	s.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.True(t, rec.paired)
	assert.True(t, rec.connected)
	assert.Equal(t, "My Phone", *rec.name)
}

func TestScannerInterfacesRemovedDropsPropertyObserver(t *testing.T) {
	s, _ := newTestScanner()
	path := dbus.ObjectPath("/org/bluez/hci0/dev_AA")
	s.propSubs[path] = bluez.NewSubscription(func() {})

	s.interfacesRemoved(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.propSubs[path]
	assert.False(t, ok)
}
