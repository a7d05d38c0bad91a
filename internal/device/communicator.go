package device

import (
	"math/rand"
	"sync"

	"github.com/kiwiz/ancs4linux/internal/ancs"
	"github.com/kiwiz/ancs4linux/internal/bluez"
	"github.com/sirupsen/logrus"
)

// queueEntry is a notification awaiting an app display name before it
// can be shown.
type queueEntry struct {
	n OutboundNotification
}

// Communicator is the per-device ANCS conversation engine: it decodes
// Notification Source events, requests notification and app attributes
// over the Control Point, and pumps a FIFO queue of notifications that
// are held back until their app's display name is known.
type Communicator struct {
	mu sync.Mutex

	deviceName   string
	deviceHandle string
	idBase       uint32

	ns, cp, ds Characteristic
	nsSub      *bluez.Subscription
	dsSub      *bluez.Subscription

	queue            []queueEntry
	awaitingAppNames map[string]bool
	knownAppNames    map[string]string

	sink NotificationSink
	log  *logrus.Entry
}

// NewCommunicator constructs a Communicator for a device whose NS, CP
// and DS characteristic handles are already resolved. idBase is a
// random per-device offset (a multiple of 1000 in [1000, 99999000];
// see hostID) used to project ANCS uids into a host-wide id space, so
// that ids from two devices are unlikely, though not certain, to differ.
func NewCommunicator(deviceName, deviceHandle string, ns, cp, ds Characteristic, sink NotificationSink, log *logrus.Entry) *Communicator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Communicator{
		deviceName:       deviceName,
		deviceHandle:     deviceHandle,
		idBase:           (uint32(rand.Intn(100000-1)+1) * 1000),
		ns:               ns,
		cp:               cp,
		ds:               ds,
		awaitingAppNames: make(map[string]bool),
		knownAppNames:    make(map[string]string),
		sink:             sink,
		log:              log,
	}
}

// Attach subscribes to property changes on NS and DS. Only value
// updates on org.bluez.GattCharacteristic1 whose changeset contains
// Value are relevant; OnValueChanged already filters to that shape.
func (c *Communicator) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nsSub = c.ns.OnValueChanged(c.onNotificationSource)
	c.dsSub = c.ds.OnValueChanged(c.onDataSource)
}

// Detach cancels both subscriptions. Safe to call more than once.
func (c *Communicator) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nsSub != nil {
		c.nsSub.Close()
		c.nsSub = nil
	}
	if c.dsSub != nil {
		c.dsSub.Close()
		c.dsSub = nil
	}
}

func (c *Communicator) onNotificationSource(data []byte) {
	n, err := ancs.DecodeNotification(data)
	if err != nil {
		c.log.WithError(err).Warn("communicator: malformed notification source frame")
		return
	}

	if n.EventID == ancs.EventRemoved || (n.EventID == ancs.EventAdded && n.IsPreExisting()) {
		c.sink.DismissNotification(c.hostID(n.UID))
		return
	}

	msg := ancs.EncodeGetNotificationAttributes(n.UID, n.HasPositiveAction(), n.HasNegativeAction())
	if err := c.cp.WriteValue(msg); err != nil {
		c.log.WithError(err).Warn("communicator: GetNotificationAttributes write failed")
	}
}

func (c *Communicator) onDataSource(data []byte) {
	ev, err := ancs.DecodeDataSource(data)
	if err != nil {
		c.log.WithError(err).Warn("communicator: malformed data source frame")
		return
	}

	switch ev.CommandID {
	case ancs.CommandGetNotificationAttributes:
		attrs, err := ancs.ParseNotificationAttributes(ev.Body)
		if err != nil {
			c.log.WithError(err).Warn("communicator: malformed notification attributes")
			return
		}
		c.onNotificationAttributes(attrs)
	case ancs.CommandGetAppAttributes:
		attrs, err := ancs.ParseAppAttributes(ev.Body)
		if err != nil {
			c.log.WithError(err).Warn("communicator: malformed app attributes")
			return
		}
		c.onAppAttributes(attrs)
	}
}

func (c *Communicator) onNotificationAttributes(attrs ancs.NotificationAttributes) {
	n := OutboundNotification{
		DeviceName:   c.deviceName,
		DeviceHandle: c.deviceHandle,
		AppID:        attrs.AppID,
		AppName:      "",
		ID:           c.hostID(attrs.UID),
		Title:        attrs.Title,
		Body:         attrs.Message,
	}
	if attrs.HasPositive {
		n.PositiveAction = &attrs.PositiveAction
	}
	if attrs.HasNegative {
		n.NegativeAction = &attrs.NegativeAction
	}

	c.mu.Lock()
	c.queue = append(c.queue, queueEntry{n: n})
	c.mu.Unlock()

	c.processQueue()
}

func (c *Communicator) onAppAttributes(attrs ancs.AppAttributes) {
	c.mu.Lock()
	c.knownAppNames[attrs.AppID] = attrs.AppName
	delete(c.awaitingAppNames, attrs.AppID)
	c.mu.Unlock()

	c.processQueue()
}

// processQueue iterates the queue in FIFO order, partitioning each
// entry into one of three classes: ready to show, already awaiting its
// app name, or needing a fresh GetAppAttributes request. It is
// idempotent: re-running it with no state change produces no outbound
// traffic.
func (c *Communicator) processQueue() {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	var toWrite []string
	remaining := make([]queueEntry, 0, len(queue))

	for _, entry := range queue {
		if name, ok := c.knownAppNames[entry.n.AppID]; ok {
			entry.n.AppName = name
			c.sink.ShowNotification(entry.n)
			continue
		}
		if c.awaitingAppNames[entry.n.AppID] {
			remaining = append(remaining, entry)
			continue
		}
		c.awaitingAppNames[entry.n.AppID] = true
		toWrite = append(toWrite, entry.n.AppID)
		remaining = append(remaining, entry)
	}
	c.queue = remaining
	c.mu.Unlock()

	for _, appID := range toWrite {
		msg := ancs.EncodeGetAppAttributes(appID)
		if err := c.cp.WriteValue(msg); err != nil {
			c.log.WithError(err).Warn("communicator: GetAppAttributes write failed")
		}
	}
}

// AskForAction writes a PerformNotificationAction for the notification
// identified by its host-projected id.
func (c *Communicator) AskForAction(hostID uint32, isPositive bool) error {
	ancsUID := hostID - c.idBase
	msg := ancs.EncodePerformNotificationAction(ancsUID, isPositive)
	return c.cp.WriteValue(msg)
}

// hostID projects an ANCS-local uid into the host-wide id space used on
// the outward control surface.
func (c *Communicator) hostID(uid uint32) uint32 {
	return c.idBase + uid
}
