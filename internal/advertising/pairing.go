package advertising

import (
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/kiwiz/ancs4linux/internal/bluez"
)

// pairingAgentPath is where the Agent1 object is exported.
const pairingAgentPath = dbus.ObjectPath("/pairing_agent")

// pairingRejected is the well-defined error surfaced to the BLE stack
// for every callback this agent does not accept.
var pairingRejected = dbus.NewError("org.bluez.Error.Rejected", []interface{}{"pairing rejected"})

// PairingCodeSink receives the passkey emitted during
// request_confirmation, for relay on the outward control surface's
// PairingCode signal.
type PairingCodeSink interface {
	PairingCode(pin string)
}

// pairingAgent implements org.bluez.Agent1 with capability
// DisplayYesNo: every callback except request_confirmation rejects
// outright; request_confirmation accepts and asynchronously reports
// the passkey to sink.
type pairingAgent struct {
	sink PairingCodeSink
}

func (a *pairingAgent) Release() *dbus.Error { return nil }

func (a *pairingAgent) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	return "", pairingRejected
}

func (a *pairingAgent) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	return pairingRejected
}

func (a *pairingAgent) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	return 0, pairingRejected
}

func (a *pairingAgent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	return pairingRejected
}

func (a *pairingAgent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	go a.sink.PairingCode(formatPasskey(passkey))
	return nil
}

func (a *pairingAgent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	return pairingRejected
}

func (a *pairingAgent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	return pairingRejected
}

func (a *pairingAgent) Cancel() *dbus.Error { return nil }

func formatPasskey(passkey uint32) string {
	digits := [6]byte{}
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + passkey%10)
		passkey /= 10
	}
	return string(digits[:])
}

// PairingManager owns the 0/1 reference-counted pairing-agent
// registration: the agent is registered at most once, and tracks
// whether its current registration was auto-enabled by the advertiser
// (in which case it is auto-disabled when the last advertisement
// stops).
type PairingManager struct {
	mu                   sync.Mutex
	sink                 PairingCodeSink
	registered           bool
	enabledAutomatically bool
	exported             bool

	// resolveAdapter/exportAgent default to bus-backed implementations
	// below; tests override them with fakes so Enable/Disable can be
	// driven without a live D-Bus connection.
	resolveAdapter func() (Adapter, error)
	exportAgent    func() error
}

// NewPairingManager builds a PairingManager bound to bus; sink receives
// the PairingCode relay.
func NewPairingManager(bus *bluez.Bus, sink PairingCodeSink) *PairingManager {
	p := &PairingManager{sink: sink}
	p.resolveAdapter = func() (Adapter, error) { return bluez.DefaultAdapter(bus) }
	p.exportAgent = func() error {
		agent := &pairingAgent{sink: sink}
		return bus.Conn().Export(agent, pairingAgentPath, "org.bluez.Agent1")
	}
	return p
}

// Registered reports whether the agent is currently registered.
func (p *PairingManager) Registered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered
}

// AutoEnabled reports whether the current registration was enabled
// automatically by the advertiser (rather than an explicit EnablePairing
// call).
func (p *PairingManager) AutoEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered && p.enabledAutomatically
}

func (p *PairingManager) ensureExportedLocked() error {
	if p.exported {
		return nil
	}
	if err := p.exportAgent(); err != nil {
		return err
	}
	p.exported = true
	return nil
}

// Enable registers the pairing agent if it is not already registered.
// automatic marks whether this registration should be auto-disabled
// once the advertiser has no more active advertisements.
func (p *PairingManager) Enable(automatic bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registered {
		// An explicit EnablePairing (automatic=false) takes precedence
		// over an earlier auto-enable: it must suppress the
		// auto-disable that would otherwise fire when the advertiser's
		// last active adapter stops.
		if !automatic {
			p.enabledAutomatically = false
		}
		return nil
	}
	if err := p.ensureExportedLocked(); err != nil {
		return err
	}
	adapter, err := p.resolveAdapter()
	if err != nil {
		return err
	}
	if err := adapter.RegisterAgent(pairingAgentPath, "DisplayYesNo"); err != nil {
		return err
	}
	p.registered = true
	p.enabledAutomatically = automatic
	return nil
}

// Disable unregisters the pairing agent if currently registered.
func (p *PairingManager) Disable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.registered {
		return nil
	}
	adapter, err := p.resolveAdapter()
	if err != nil {
		return err
	}
	if err := adapter.UnregisterAgent(pairingAgentPath); err != nil {
		return err
	}
	p.registered = false
	p.enabledAutomatically = false
	return nil
}
