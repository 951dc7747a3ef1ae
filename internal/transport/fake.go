// ABOUTME: In-memory Transport implementation for tests and dev mode.
// ABOUTME: Records outbound sends and lets callers drive lifecycle events by hand.

package transport

import (
	"context"
	"sync"
)

// SentMessage is one recorded Send call on a Fake transport.
type SentMessage struct {
	Recipient string
	Message   OutboundMessage
}

// Fake is an in-memory Transport. Tests drive the session lifecycle by
// calling the Emit* methods; the dev transport mode uses it so the binary
// runs without a real messaging library attached.
type Fake struct {
	TenantID      string
	CredentialDir string

	mu       sync.Mutex
	events   Events
	sent     []SentMessage
	started  bool
	closed   bool
	startErr error
	sendErr  error
}

// NewFake creates a Fake transport wired to the given event callbacks.
func NewFake(tenantID, credentialDir string, events Events) *Fake {
	return &Fake{
		TenantID:      tenantID,
		CredentialDir: credentialDir,
		events:        events,
	}
}

// FakeFactory is a Factory producing Fake transports and retaining handles
// to them so tests can reach the transport behind a tenant session.
type FakeFactory struct {
	mu       sync.Mutex
	created  []*Fake
	startErr error
}

// NewFakeFactory creates an empty FakeFactory.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{}
}

// New implements Factory.
func (f *FakeFactory) New(tenantID, credentialDir string, events Events) (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fake := NewFake(tenantID, credentialDir, events)
	fake.startErr = f.startErr
	f.created = append(f.created, fake)
	return fake, nil
}

// Created returns every transport the factory has produced, in order.
func (f *FakeFactory) Created() []*Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*Fake, len(f.created))
	copy(out, f.created)
	return out
}

// Last returns the most recently created transport, or nil.
func (f *FakeFactory) Last() *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

// FailStarts makes every subsequently created transport fail its Start call.
func (f *FakeFactory) FailStarts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

// Start implements Transport.
func (t *Fake) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.startErr != nil {
		return t.startErr
	}
	t.started = true
	return nil
}

// Send implements Transport.
func (t *Fake) Send(ctx context.Context, recipient string, msg OutboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, SentMessage{Recipient: recipient, Message: msg})
	return nil
}

// Close implements Transport.
func (t *Fake) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// FailSends makes subsequent Send calls return err.
func (t *Fake) FailSends(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Started reports whether Start has been called.
func (t *Fake) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Closed reports whether Close has been called.
func (t *Fake) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Sent returns a copy of all recorded sends.
func (t *Fake) Sent() []SentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]SentMessage, len(t.sent))
	copy(out, t.sent)
	return out
}

// EmitPairingCode invokes the PairingCode callback.
func (t *Fake) EmitPairingCode(code string) {
	if t.events.PairingCode != nil {
		t.events.PairingCode(code)
	}
}

// EmitAuthenticated invokes the Authenticated callback.
func (t *Fake) EmitAuthenticated() {
	if t.events.Authenticated != nil {
		t.events.Authenticated()
	}
}

// EmitReady invokes the Ready callback.
func (t *Fake) EmitReady() {
	if t.events.Ready != nil {
		t.events.Ready()
	}
}

// EmitDisconnected invokes the Disconnected callback.
func (t *Fake) EmitDisconnected(reason string) {
	if t.events.Disconnected != nil {
		t.events.Disconnected(reason)
	}
}

// EmitMessage invokes the Message callback.
func (t *Fake) EmitMessage(msg InboundMessage) {
	if t.events.Message != nil {
		t.events.Message(msg)
	}
}
