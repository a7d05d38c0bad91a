package device

import (
	"sync"

	"github.com/kiwiz/ancs4linux/internal/bluez"
)

// fakeCharacteristic is an in-memory Characteristic used by tests in
// place of a real BlueZ GATT characteristic.
type fakeCharacteristic struct {
	mu           sync.Mutex
	writes       [][]byte
	startFails   bool
	notifyCalled int
	stopCalled   int
	watcher      func([]byte)

	// startHook, if set, runs synchronously inside StartNotify (after
	// recording the call, before returning) with no locks held — tests
	// use it to inject a concurrent Record mutation mid-probe.
	startHook func()
}

func (f *fakeCharacteristic) WriteValue(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeCharacteristic) StartNotify() error {
	f.mu.Lock()
	f.notifyCalled++
	fails := f.startFails
	hook := f.startHook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fails {
		return errStartNotify
	}
	return nil
}

func (f *fakeCharacteristic) StopNotify() error {
	f.mu.Lock()
	f.stopCalled++
	f.mu.Unlock()
	return nil
}

func (f *fakeCharacteristic) OnValueChanged(fn func([]byte)) *bluez.Subscription {
	f.mu.Lock()
	f.watcher = fn
	f.mu.Unlock()
	return bluez.NewSubscription(func() {
		f.mu.Lock()
		f.watcher = nil
		f.mu.Unlock()
	})
}

func (f *fakeCharacteristic) deliver(data []byte) {
	f.mu.Lock()
	w := f.watcher
	f.mu.Unlock()
	if w != nil {
		w(data)
	}
}

func (f *fakeCharacteristic) lastWrite() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return f.writes[len(f.writes)-1]
}

var errStartNotify = fakeErr("start-notify failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

// fakeSink records ShowNotification/DismissNotification calls.
type fakeSink struct {
	mu        sync.Mutex
	shown     []OutboundNotification
	dismissed []uint32
}

func (f *fakeSink) ShowNotification(n OutboundNotification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, n)
}

func (f *fakeSink) DismissNotification(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
}

func (f *fakeSink) snapshotShown() []OutboundNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OutboundNotification{}, f.shown...)
}

func (f *fakeSink) snapshotDismissed() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32{}, f.dismissed...)
}
