package device

import (
	"context"
	"sync"
	"time"

	"github.com/kiwiz/ancs4linux/internal/restarter"
	"github.com/sirupsen/logrus"
)

const (
	subscribeMaxAttempts = 120
	subscribeInterval    = time.Second
)

// Record is the per-device readiness state machine (spec C4): paired,
// connected, name and the three ANCS characteristic handles must all be
// present, with no Communicator already attached, before a Communicator
// is spawned. Every setter tears down any existing Communicator before
// mutating its field, so the invariants never need per-field diffing.
type Record struct {
	mu sync.Mutex

	handle string // device object path / address, used as device_handle
	name   *string

	paired    bool
	connected bool
	ns, cp, ds Characteristic
	comm       *Communicator

	// generation counts teardownLocked calls, i.e. setter invocations.
	// subscribeProbe captures it before its unlocked bus I/O and
	// refuses to commit a built Communicator if it has moved on,
	// since that means the fields it read are stale (and a newer
	// restarter may already own this record).
	generation uint64

	sink      NotificationSink
	log       *logrus.Entry
	ctx       context.Context
	restarter *restarter.Restarter
}

// NewRecord constructs an empty device record for the given handle
// (its BlueZ object path, used verbatim as device_handle on the
// outward control surface).
func NewRecord(ctx context.Context, handle string, sink NotificationSink, log *logrus.Entry) *Record {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Record{handle: handle, sink: sink, log: log.WithField("device", handle), ctx: ctx}
}

// teardown detaches and clears any attached Communicator. Must be
// called with r.mu held.
func (r *Record) teardownLocked() {
	r.generation++
	if r.restarter != nil {
		r.restarter.Cancel()
		r.restarter = nil
	}
	if r.comm == nil {
		return
	}
	r.comm.Detach()
	if r.ns != nil {
		if err := r.ns.StopNotify(); err != nil {
			r.log.WithError(err).Debug("device: stop-notify NS failed")
		}
	}
	if r.ds != nil {
		if err := r.ds.StopNotify(); err != nil {
			r.log.WithError(err).Debug("device: stop-notify DS failed")
		}
	}
	r.comm = nil
}

// SetPaired updates the Paired flag.
func (r *Record) SetPaired(paired bool) {
	r.mu.Lock()
	r.teardownLocked()
	r.paired = paired
	r.maybeSpawnLocked()
	r.mu.Unlock()
}

// SetConnected updates the Connected flag.
func (r *Record) SetConnected(connected bool) {
	r.mu.Lock()
	r.teardownLocked()
	r.connected = connected
	r.maybeSpawnLocked()
	r.mu.Unlock()
}

// SetName updates the device's resolved alias.
func (r *Record) SetName(name string) {
	r.mu.Lock()
	r.teardownLocked()
	r.name = &name
	r.maybeSpawnLocked()
	r.mu.Unlock()
}

// SetNotificationSource assigns the Notification Source characteristic
// handle.
func (r *Record) SetNotificationSource(c Characteristic) {
	r.mu.Lock()
	r.teardownLocked()
	r.ns = c
	r.maybeSpawnLocked()
	r.mu.Unlock()
}

// SetControlPoint assigns the Control Point characteristic handle.
func (r *Record) SetControlPoint(c Characteristic) {
	r.mu.Lock()
	r.teardownLocked()
	r.cp = c
	r.maybeSpawnLocked()
	r.mu.Unlock()
}

// SetDataSource assigns the Data Source characteristic handle.
func (r *Record) SetDataSource(c Characteristic) {
	r.mu.Lock()
	r.teardownLocked()
	r.ds = c
	r.maybeSpawnLocked()
	r.mu.Unlock()
}

// ready reports whether every readiness-conjunction field holds. Must
// be called with r.mu held.
func (r *Record) readyLocked() bool {
	return r.paired && r.connected && r.name != nil && r.ns != nil && r.cp != nil && r.ds != nil && r.comm == nil
}

// maybeSpawnLocked starts the subscribe restarter when the readiness
// conjunction holds. Must be called with r.mu held.
func (r *Record) maybeSpawnLocked() {
	if !r.readyLocked() {
		return
	}
	rst := restarter.New(subscribeMaxAttempts, subscribeInterval, r.subscribeProbe, r.onSubscribeSuccess, r.onSubscribeFailure, r.log)
	r.restarter = rst
	rst.Start(r.ctx)
}

// subscribeProbe starts notify on DS then NS, and on success builds and
// attaches a Communicator. It reads/writes comm under the lock but
// performs the (blocking) bus calls outside it, matching the
// teacher's pattern of not holding application mutexes across bus I/O.
// Because the record can be mutated by a concurrent setter while this
// runs unlocked, it re-checks the generation counter before committing:
// if a setter ran in the meantime, the ds/ns/cp/name this probe read
// are stale (and a newer restarter may already own the record), so the
// freshly built Communicator is torn down instead of attached.
func (r *Record) subscribeProbe() bool {
	r.mu.Lock()
	gen := r.generation
	ds, ns, cp := r.ds, r.ns, r.cp
	name := ""
	if r.name != nil {
		name = *r.name
	}
	handle := r.handle
	sink := r.sink
	log := r.log
	r.mu.Unlock()

	if err := ds.StartNotify(); err != nil {
		log.WithError(err).Warn("device: start-notify DS failed")
		return false
	}
	if err := ns.StartNotify(); err != nil {
		log.WithError(err).Warn("device: start-notify NS failed")
		return false
	}

	comm := NewCommunicator(name, handle, ns, cp, ds, sink, log)
	comm.Attach()

	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		comm.Detach()
		if err := ds.StopNotify(); err != nil {
			log.WithError(err).Debug("device: stop-notify DS failed on stale probe")
		}
		if err := ns.StopNotify(); err != nil {
			log.WithError(err).Debug("device: stop-notify NS failed on stale probe")
		}
		return false
	}
	r.comm = comm
	r.mu.Unlock()
	return true
}

func (r *Record) onSubscribeSuccess() {
	r.log.Info("Asking for notifications: success.")
}

func (r *Record) onSubscribeFailure() {
	r.log.Error("Failed to subscribe to notifications.")
}

// HandleAction routes an outward invoke_device_action call to the
// attached Communicator, if any; a no-op otherwise.
func (r *Record) HandleAction(hostID uint32, isPositive bool) {
	r.mu.Lock()
	comm := r.comm
	log := r.log
	r.mu.Unlock()
	if comm == nil {
		return
	}
	if err := comm.AskForAction(hostID, isPositive); err != nil {
		log.WithError(err).Warn("device: ask-for-action write failed")
	}
}
