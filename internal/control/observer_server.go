package control

import (
	"encoding/json"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/kiwiz/ancs4linux/internal/device"
	"github.com/sirupsen/logrus"
)

const observerPath = dbus.ObjectPath("/")
const observerInterface = "ancs4linux.Observer"

// ActionRouter routes an outward invoke_device_action call to the
// device record that owns deviceHandle. Satisfied by *device.Scanner.
type ActionRouter interface {
	HandleAction(deviceHandle string, hostID uint32, isPositive bool)
}

// ObserverServer exports ancs4linux.Observer at "/": the
// InvokeDeviceAction method, and the ShowNotification/
// DismissNotification signals device.Scanner's Communicators report
// through as a device.NotificationSink.
type ObserverServer struct {
	conn   *dbus.Conn
	router ActionRouter
	log    *logrus.Entry
}

// NewObserverServer exports the Observer object and claims busName.
func NewObserverServer(conn *dbus.Conn, busName string, router ActionRouter, log *logrus.Entry) (*ObserverServer, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &ObserverServer{conn: conn, router: router, log: log}
	if err := conn.Export(s, observerPath, observerInterface); err != nil {
		return nil, fmt.Errorf("control: export observer methods: %w", err)
	}
	if err := requestBusName(conn, busName); err != nil {
		return nil, fmt.Errorf("control: claim %s: %w", busName, err)
	}
	return s, nil
}

// InvokeDeviceAction is the ancs4linux.Observer.InvokeDeviceAction
// D-Bus method.
func (s *ObserverServer) InvokeDeviceAction(deviceHandle string, notificationID uint32, isPositive bool) *dbus.Error {
	s.router.HandleAction(deviceHandle, notificationID, isPositive)
	return nil
}

// ShowNotification implements device.NotificationSink by emitting the
// ShowNotification signal with the outbound payload JSON-encoded.
func (s *ObserverServer) ShowNotification(n device.OutboundNotification) {
	payload, err := json.Marshal(n)
	if err != nil {
		s.log.WithError(err).Error("control: marshal outbound notification failed")
		return
	}
	if err := s.conn.Emit(observerPath, observerInterface+".ShowNotification", string(payload)); err != nil {
		s.log.WithError(err).Warn("control: emit ShowNotification failed")
	}
}

// DismissNotification implements device.NotificationSink by emitting
// the DismissNotification signal.
func (s *ObserverServer) DismissNotification(hostID uint32) {
	if err := s.conn.Emit(observerPath, observerInterface+".DismissNotification", hostID); err != nil {
		s.log.WithError(err).Warn("control: emit DismissNotification failed")
	}
}
