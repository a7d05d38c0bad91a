// Package device implements the device-side ANCS engine: the
// per-device readiness state machine (Record), the per-device
// notification conversation (Communicator), and the BlueZ object-graph
// observer that drives both (Scanner).
package device

import "github.com/kiwiz/ancs4linux/internal/bluez"

// Characteristic is the capability surface Record and Communicator
// need from a GATT characteristic. Satisfied by *bluez.Characteristic;
// tests supply a hand-written fake.
type Characteristic interface {
	WriteValue(data []byte) error
	StartNotify() error
	StopNotify() error
	OnValueChanged(fn func([]byte)) *bluez.Subscription
}

// OutboundNotification is the JSON payload emitted on the
// ShowNotification signal of the observer control surface.
type OutboundNotification struct {
	DeviceName     string  `json:"device_name"`
	DeviceHandle   string  `json:"device_handle"`
	AppID          string  `json:"app_id"`
	AppName        string  `json:"app_name"`
	ID             uint32  `json:"id"`
	Title          string  `json:"title"`
	Body           string  `json:"body"`
	PositiveAction *string `json:"positive_action"`
	NegativeAction *string `json:"negative_action"`
}

// NotificationSink is the outward control surface a Communicator
// reports to. Satisfied by *control.ObserverServer.
type NotificationSink interface {
	ShowNotification(n OutboundNotification)
	DismissNotification(hostID uint32)
}
