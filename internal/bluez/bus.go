package bluez

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// ManagedObjects is the shape returned by
// org.freedesktop.DBus.ObjectManager.GetManagedObjects: object path ->
// interface name -> property name -> value.
type ManagedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// PropertyChange is delivered to a watcher registered with
// Bus.WatchProperties for the path/interface it subscribed to.
type PropertyChange struct {
	Interface string
	Changed   map[string]dbus.Variant
}

// Subscription is returned by WatchProperties (and so by
// Characteristic.OnValueChanged). Close detaches the callback; it is
// safe to call more than once. The root InterfacesAdded/Removed watches
// return no Subscription and cannot be detached.
type Subscription struct {
	close func()
	once  sync.Once
}

// NewSubscription wraps a detach callback as a Subscription. Exported
// so fakes outside this package can satisfy capability interfaces that
// return *Subscription (see internal/device's Characteristic interface).
func NewSubscription(close func()) *Subscription {
	return &Subscription{close: close}
}

// Close cancels the subscription.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.close != nil {
			s.close()
		}
	})
}

// Bus owns the system-bus connection to BlueZ and fans out signals to
// registered watchers. There is exactly one reader goroutine per Bus,
// which keeps signal delivery ordered per path the way spec §5 requires.
type Bus struct {
	conn *dbus.Conn
	log  *logrus.Entry

	mu              sync.Mutex
	propWatchers    map[dbus.ObjectPath][]func(PropertyChange)
	addedWatchers   []func(dbus.ObjectPath, map[string]map[string]dbus.Variant)
	removedWatchers []func(dbus.ObjectPath, []string)
}

// Connect opens the system bus connection used to talk to BlueZ and
// starts the signal dispatch goroutine.
func Connect(log *logrus.Entry) (*Bus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	b := &Bus{
		conn:         conn,
		log:          log,
		propWatchers: make(map[dbus.ObjectPath][]func(PropertyChange)),
	}
	if err := b.addMatches(); err != nil {
		conn.Close()
		return nil, err
	}
	ch := make(chan *dbus.Signal, 64)
	conn.Signal(ch)
	go b.dispatch(ch)
	return b, nil
}

// Conn exposes the underlying connection for callers (the adapter and
// characteristic facades, and packages that export D-Bus objects) that
// need to issue method calls.
func (b *Bus) Conn() *dbus.Conn { return b.conn }

// Close releases the bus connection.
func (b *Bus) Close() error { return b.conn.Close() }

func (b *Bus) addMatches() error {
	matches := []string{
		"type='signal',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged'",
		"type='signal',interface='org.freedesktop.DBus.ObjectManager',member='InterfacesAdded'",
		"type='signal',interface='org.freedesktop.DBus.ObjectManager',member='InterfacesRemoved'",
	}
	for _, m := range matches {
		if call := b.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, m); call.Err != nil {
			return fmt.Errorf("bluez: AddMatch: %w", call.Err)
		}
	}
	return nil
}

func (b *Bus) dispatch(ch <-chan *dbus.Signal) {
	for sig := range ch {
		switch sig.Name {
		case "org.freedesktop.DBus.Properties.PropertiesChanged":
			b.dispatchPropertiesChanged(sig)
		case "org.freedesktop.DBus.ObjectManager.InterfacesAdded":
			b.dispatchInterfacesAdded(sig)
		case "org.freedesktop.DBus.ObjectManager.InterfacesRemoved":
			b.dispatchInterfacesRemoved(sig)
		}
	}
}

func (b *Bus) dispatchPropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	b.mu.Lock()
	watchers := append([]func(PropertyChange){}, b.propWatchers[sig.Path]...)
	b.mu.Unlock()
	for _, w := range watchers {
		if w == nil { // slot of a closed Subscription
			continue
		}
		w(PropertyChange{Interface: iface, Changed: changed})
	}
}

func (b *Bus) dispatchInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}
	b.mu.Lock()
	watchers := append([]func(dbus.ObjectPath, map[string]map[string]dbus.Variant){}, b.addedWatchers...)
	b.mu.Unlock()
	for _, w := range watchers {
		w(path, ifaces)
	}
}

func (b *Bus) dispatchInterfacesRemoved(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].([]string)
	if !ok {
		return
	}
	b.mu.Lock()
	watchers := append([]func(dbus.ObjectPath, []string){}, b.removedWatchers...)
	b.mu.Unlock()
	for _, w := range watchers {
		w(path, ifaces)
	}
}

// GetManagedObjects enumerates every object BlueZ currently exposes.
func (b *Bus) GetManagedObjects() (ManagedObjects, error) {
	var out ManagedObjects
	obj := b.conn.Object(BusName, RootPath)
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&out); err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", err)
	}
	return out, nil
}

// WatchProperties registers a callback for PropertiesChanged signals on
// path. The returned Subscription's Close detaches the callback.
func (b *Bus) WatchProperties(path dbus.ObjectPath, fn func(PropertyChange)) *Subscription {
	b.mu.Lock()
	b.propWatchers[path] = append(b.propWatchers[path], fn)
	idx := len(b.propWatchers[path]) - 1
	b.mu.Unlock()

	return &Subscription{close: func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.propWatchers[path]
		if idx < len(list) {
			list[idx] = nil
		}
		// Compact once the watcher list is all nils, to stop accumulating
		// cancelled subscriptions on long-lived devices.
		allNil := true
		for _, w := range list {
			if w != nil {
				allNil = false
				break
			}
		}
		if allNil {
			delete(b.propWatchers, path)
		}
	}}
}

// WatchInterfacesAdded registers a callback for the root
// InterfacesAdded signal.
func (b *Bus) WatchInterfacesAdded(fn func(dbus.ObjectPath, map[string]map[string]dbus.Variant)) {
	b.mu.Lock()
	b.addedWatchers = append(b.addedWatchers, fn)
	b.mu.Unlock()
}

// WatchInterfacesRemoved registers a callback for the root
// InterfacesRemoved signal.
func (b *Bus) WatchInterfacesRemoved(fn func(dbus.ObjectPath, []string)) {
	b.mu.Lock()
	b.removedWatchers = append(b.removedWatchers, fn)
	b.mu.Unlock()
}
