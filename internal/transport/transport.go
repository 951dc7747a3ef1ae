// ABOUTME: Transport capability interface consumed by the session supervisor.
// ABOUTME: Defines lifecycle callbacks, inbound messages, and the outbound send primitive.

package transport

import (
	"context"
	"errors"
)

// ErrNotConnected indicates a send was attempted before the session reached
// the ready state.
var ErrNotConnected = errors.New("transport not connected")

// InboundMessage is a message received from the messaging platform.
type InboundMessage struct {
	// ID is the platform-assigned message identifier, used for deduplication.
	ID string

	// Sender is the platform identity of the message author. It is external
	// input and must not be treated as a security boundary.
	Sender string

	// Text is the plain-text message body.
	Text string
}

// OutboundMessage is content handed to the transport for delivery. Options,
// when present, render as selectable buttons on platforms that support them.
type OutboundMessage struct {
	Text    string
	Options []string
}

// Events carries the lifecycle callbacks a transport invokes as the session
// progresses. Nil callbacks are skipped. Callbacks must return quickly; the
// transport may invoke them from its own event loop.
type Events struct {
	// PairingCode fires each time the transport generates (or regenerates)
	// pairing material that a human must scan to authenticate the session.
	PairingCode func(code string)

	// Authenticated fires once the pairing material has been consumed.
	Authenticated func()

	// Ready fires when the session can send and receive messages.
	Ready func()

	// Disconnected fires when the session drops, with a platform reason.
	Disconnected func(reason string)

	// Message fires for each inbound message on a ready session.
	Message func(msg InboundMessage)
}

// Transport is one logical messaging session. A Transport instance is owned
// exclusively by the session supervisor entry for a single tenant.
type Transport interface {
	// Start begins the session lifecycle. It returns once initialization is
	// underway; progress is reported through Events.
	Start(ctx context.Context) error

	// Send delivers a message to the given platform recipient.
	Send(ctx context.Context, recipient string, msg OutboundMessage) error

	// Close tears the session down. Credentials on disk are left intact so
	// a later Start for the same tenant can resume without re-pairing.
	Close() error
}

// Factory creates transports. credentialDir is a per-tenant directory the
// transport owns for durable pairing credentials; it is created before the
// factory is invoked and reused across restarts of the same tenant.
type Factory interface {
	New(tenantID, credentialDir string, events Events) (Transport, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(tenantID, credentialDir string, events Events) (Transport, error)

// New implements Factory.
func (f FactoryFunc) New(tenantID, credentialDir string, events Events) (Transport, error) {
	return f(tenantID, credentialDir, events)
}
