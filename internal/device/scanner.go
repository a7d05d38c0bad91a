package device

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/kiwiz/ancs4linux/internal/ancs"
	"github.com/kiwiz/ancs4linux/internal/bluez"
	"github.com/sirupsen/logrus"
)

// busGraph is the subset of *bluez.Bus that the scanner depends on:
// object-graph signals and enumeration. Defined as an interface so
// tests can drive processObject/processProperty without a live D-Bus
// connection; *bluez.Bus satisfies it directly.
type busGraph interface {
	WatchInterfacesAdded(fn func(dbus.ObjectPath, map[string]map[string]dbus.Variant))
	WatchInterfacesRemoved(fn func(dbus.ObjectPath, []string))
	GetManagedObjects() (bluez.ManagedObjects, error)
	WatchProperties(path dbus.ObjectPath, fn func(bluez.PropertyChange)) *bluez.Subscription
}

// Scanner observes the BlueZ object graph and drives device Records:
// it watches root InterfacesAdded/Removed, sweeps the initial managed
// objects, and subscribes to PropertiesChanged on every device object
// it discovers.
type Scanner struct {
	bus           busGraph
	newCharacteristic func(path dbus.ObjectPath) Characteristic
	sink          NotificationSink
	log           *logrus.Entry
	ctx           context.Context

	mu       sync.Mutex
	records  map[dbus.ObjectPath]*Record
	propSubs map[dbus.ObjectPath]*bluez.Subscription
}

// NewScanner builds a Scanner bound to bus; discovered notifications
// and dismissals are reported to sink.
func NewScanner(ctx context.Context, bus *bluez.Bus, sink NotificationSink, log *logrus.Entry) *Scanner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scanner{
		bus:  bus,
		newCharacteristic: func(path dbus.ObjectPath) Characteristic {
			return bluez.NewCharacteristic(bus, path)
		},
		sink:     sink,
		log:      log,
		ctx:      ctx,
		records:  make(map[dbus.ObjectPath]*Record),
		propSubs: make(map[dbus.ObjectPath]*bluez.Subscription),
	}
}

// Start subscribes to the root object-manager signals and then sweeps
// every currently managed object through processObject.
func (s *Scanner) Start() error {
	s.bus.WatchInterfacesAdded(s.processObject)
	s.bus.WatchInterfacesRemoved(func(path dbus.ObjectPath, ifaces []string) {
		s.interfacesRemoved(path)
	})

	objs, err := s.bus.GetManagedObjects()
	if err != nil {
		return err
	}
	for path, ifaces := range objs {
		s.processObject(path, ifaces)
	}
	return nil
}

func (s *Scanner) recordFor(path dbus.ObjectPath) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	if !ok {
		log := s.log.WithField("device_path", string(path))
		if addr := bluez.AddrFromPath(path); addr != "" {
			log = log.WithField("device_address", addr)
		}
		rec = NewRecord(s.ctx, string(path), s.sink, log)
		s.records[path] = rec
	}
	return rec
}

// processObject implements spec C6's process_object: it opens a
// property observer the first time a device object is seen, and wires
// up whichever of the three ANCS characteristics this object declares.
func (s *Scanner) processObject(path dbus.ObjectPath, ifaces map[string]map[string]dbus.Variant) {
	if props, ok := ifaces["org.bluez.Device1"]; ok {
		s.mu.Lock()
		_, watching := s.propSubs[path]
		s.mu.Unlock()
		if !watching {
			sub := s.bus.WatchProperties(path, func(pc bluez.PropertyChange) {
				s.processProperty(path, pc.Interface, pc.Changed)
			})
			s.mu.Lock()
			s.propSubs[path] = sub
			s.mu.Unlock()
		}
		s.processProperty(path, "org.bluez.Device1", props)
	}

	if charIface, ok := ifaces["org.bluez.GattCharacteristic1"]; ok {
		uuidVal, _ := charIface["UUID"].Value().(string)
		if uuidVal == "" {
			return
		}
		switch uuidVal {
		case ancs.NotificationSourceUUID, ancs.ControlPointUUID, ancs.DataSourceUUID:
		default:
			return
		}
		devicePath := bluez.DeviceOwnerPath(path)
		if devicePath == "" {
			return
		}
		rec := s.recordFor(devicePath)
		c := s.newCharacteristic(path)
		switch uuidVal {
		case ancs.NotificationSourceUUID:
			rec.SetNotificationSource(c)
		case ancs.ControlPointUUID:
			rec.SetControlPoint(c)
		case ancs.DataSourceUUID:
			rec.SetDataSource(c)
		}
	}
}

// processProperty implements spec C6's process_property: for the
// device interface, Paired/Connected/Alias drive the corresponding
// Record setter (Alias maps to name).
func (s *Scanner) processProperty(devicePath dbus.ObjectPath, iface string, changes map[string]dbus.Variant) {
	if iface != "org.bluez.Device1" {
		return
	}
	rec := s.recordFor(devicePath)
	if v, ok := changes["Paired"]; ok {
		if b, ok := v.Value().(bool); ok {
			rec.SetPaired(b)
		}
	}
	if v, ok := changes["Connected"]; ok {
		if b, ok := v.Value().(bool); ok {
			rec.SetConnected(b)
		}
	}
	if v, ok := changes["Alias"]; ok {
		if name, ok := v.Value().(string); ok {
			rec.SetName(name)
		}
	}
}

// HandleAction routes an outward invoke_device_action call to the
// device record owning deviceHandle (its BlueZ object path); a no-op
// if no such record exists.
func (s *Scanner) HandleAction(deviceHandle string, hostID uint32, isPositive bool) {
	s.mu.Lock()
	rec, ok := s.records[dbus.ObjectPath(deviceHandle)]
	s.mu.Unlock()
	if !ok {
		return
	}
	rec.HandleAction(hostID, isPositive)
}

// interfacesRemoved implements spec C6's interfaces_removed: the
// property observer for path is dropped. Device records themselves are
// left in place; their state machine already tore down any
// Communicator when the underlying connection dropped.
func (s *Scanner) interfacesRemoved(path dbus.ObjectPath) {
	s.mu.Lock()
	sub, ok := s.propSubs[path]
	if ok {
		delete(s.propSubs, path)
	}
	s.mu.Unlock()
	if ok {
		sub.Close()
	}
}
