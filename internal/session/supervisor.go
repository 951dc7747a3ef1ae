// ABOUTME: Session supervisor owning the per-tenant lifecycle state machine.
// ABOUTME: Starts sessions, reacts to transport events, and drives reconnection.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/conversia/flow-gateway/internal/transport"
)

// ErrNoSession indicates the tenant has no session record.
var ErrNoSession = errors.New("no session for tenant")

// MessageHandler consumes inbound messages from ready sessions.
type MessageHandler interface {
	HandleInbound(ctx context.Context, tenantID string, msg transport.InboundMessage)
}

// Supervisor owns the lifecycle state machine for every tenant session. It
// subscribes to transport events exactly once per session creation and
// schedules a flat-delay reconnect when a session drops.
type Supervisor struct {
	store          *Store
	factory        transport.Factory
	credentialRoot string
	retryDelay     time.Duration
	logger         *slog.Logger
	handler        MessageHandler
}

// SupervisorParams configures a Supervisor.
type SupervisorParams struct {
	Store          *Store
	Factory        transport.Factory
	CredentialRoot string
	RetryDelay     time.Duration
	Logger         *slog.Logger
}

// NewSupervisor creates a Supervisor. The message handler is wired in
// afterwards via SetMessageHandler since the engine needs the supervisor's
// send primitive.
func NewSupervisor(p SupervisorParams) *Supervisor {
	if p.RetryDelay <= 0 {
		p.RetryDelay = 10 * time.Second
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Supervisor{
		store:          p.Store,
		factory:        p.Factory,
		credentialRoot: p.CredentialRoot,
		retryDelay:     p.RetryDelay,
		logger:         p.Logger,
	}
}

// SetMessageHandler wires the consumer of inbound messages.
func (s *Supervisor) SetMessageHandler(h MessageHandler) {
	s.handler = h
}

// Store returns the underlying session store.
func (s *Supervisor) Store() *Store {
	return s.store
}

// Start brings up a session for the tenant. It is idempotent: if a
// non-terminal session already exists the call succeeds without side
// effects. Returns created=true when a fresh transport was built.
func (s *Supervisor) Start(ctx context.Context, tenantID string) (created bool, err error) {
	sess, _ := s.store.GetOrCreate(tenantID)

	sess.mu.Lock()
	if !sess.state.startable() {
		sess.mu.Unlock()
		s.logger.Debug("session already active, start is a no-op",
			"tenant_id", tenantID,
			"state", sess.state.String(),
		)
		return false, nil
	}

	// A pending reconnect would race the explicit start.
	sess.cancelRetryLocked()

	// Release a dead handle from a previous connection before replacing it.
	if sess.transport != nil {
		if cerr := sess.transport.Close(); cerr != nil {
			s.logger.Warn("closing stale transport", "tenant_id", tenantID, "error", cerr)
		}
		sess.transport = nil
	}

	credDir := filepath.Join(s.credentialRoot, tenantID)
	if err := os.MkdirAll(credDir, 0o700); err != nil {
		sess.mu.Unlock()
		return false, fmt.Errorf("creating credential dir for %s: %w", tenantID, err)
	}
	sess.credentialDir = credDir

	tr, err := s.factory.New(tenantID, credDir, s.eventsFor(tenantID))
	if err != nil {
		sess.mu.Unlock()
		s.logger.Error("transport init failed", "tenant_id", tenantID, "error", err)
		return false, fmt.Errorf("creating transport for %s: %w", tenantID, err)
	}

	sess.transport = tr
	sess.state = StateAwaitingPairing
	sess.mu.Unlock()

	// Start outside the session lock: the transport may begin emitting
	// lifecycle events as soon as it is running.
	if err := tr.Start(ctx); err != nil {
		s.logger.Error("transport start failed", "tenant_id", tenantID, "error", err)
		sess.mu.Lock()
		if sess.transport == tr {
			sess.transport = nil
			sess.state = StateUnstarted
		}
		sess.mu.Unlock()
		_ = tr.Close()
		return false, fmt.Errorf("starting transport for %s: %w", tenantID, err)
	}

	s.logger.Info("session starting", "tenant_id", tenantID, "credential_dir", credDir)
	return true, nil
}

// eventsFor builds the lifecycle callbacks for one tenant. The callbacks
// are registered once, at transport creation.
func (s *Supervisor) eventsFor(tenantID string) transport.Events {
	return transport.Events{
		PairingCode:   func(code string) { s.onPairingCode(tenantID, code) },
		Authenticated: func() { s.onAuthenticated(tenantID) },
		Ready:         func() { s.onReady(tenantID) },
		Disconnected:  func(reason string) { s.onDisconnected(tenantID, reason) },
		Message:       func(msg transport.InboundMessage) { s.onMessage(tenantID, msg) },
	}
}

// PairingArtifact returns the tenant's pending pairing code, or "" when the
// tenant has none. It never blocks on the transport.
func (s *Supervisor) PairingArtifact(tenantID string) string {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return ""
	}
	return sess.PairingCode()
}

// State reports the tenant's lifecycle state. An unknown tenant reads as
// StateUnstarted rather than an error.
func (s *Supervisor) State(tenantID string) State {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return StateUnstarted
	}
	return sess.State()
}

// Stop releases the tenant's transport, clears its pairing artifact, cancels
// any pending reconnect, and removes the session from the store.
func (s *Supervisor) Stop(tenantID string) error {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return ErrNoSession
	}

	sess.mu.Lock()
	sess.cancelRetryLocked()
	tr := sess.transport
	sess.transport = nil
	sess.pairingCode = ""
	sess.state = StateUnstarted
	sess.mu.Unlock()

	s.store.Remove(tenantID)

	if tr != nil {
		if err := tr.Close(); err != nil {
			s.logger.Warn("closing transport", "tenant_id", tenantID, "error", err)
		}
	}

	s.logger.Info("session stopped", "tenant_id", tenantID)
	return nil
}

// StopAll stops every tenant session. Used during gateway shutdown.
func (s *Supervisor) StopAll() {
	for _, id := range s.store.ListIDs() {
		if err := s.Stop(id); err != nil && !errors.Is(err, ErrNoSession) {
			s.logger.Warn("stopping session", "tenant_id", id, "error", err)
		}
	}
}

// Send delivers an outbound message through the tenant's transport. Returns
// ErrNoSession for unknown tenants and transport.ErrNotConnected when the
// session is not ready; no transport call is attempted in either case.
func (s *Supervisor) Send(ctx context.Context, tenantID, recipient string, msg transport.OutboundMessage) error {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return ErrNoSession
	}

	sess.mu.Lock()
	tr := sess.transport
	ready := sess.state == StateReady
	sess.mu.Unlock()

	if tr == nil || !ready {
		return transport.ErrNotConnected
	}
	return tr.Send(ctx, recipient, msg)
}

// onPairingCode records fresh pairing material. The transport regenerates
// the code when it expires, so this can fire repeatedly while pairing.
func (s *Supervisor) onPairingCode(tenantID, code string) {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sess.pairingCode = code
	sess.state = StateAwaitingPairing
	sess.mu.Unlock()

	s.logger.Info("pairing code generated", "tenant_id", tenantID)
}

func (s *Supervisor) onAuthenticated(tenantID string) {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sess.state = StateAuthenticated
	sess.mu.Unlock()

	s.logger.Info("session authenticated", "tenant_id", tenantID)
}

// onReady marks the session usable and clears the now-stale pairing code.
func (s *Supervisor) onReady(tenantID string) {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sess.state = StateReady
	sess.pairingCode = ""
	sess.mu.Unlock()

	s.logger.Info("session ready", "tenant_id", tenantID)
}

// onDisconnected records the drop and schedules a one-shot flat-delay
// reconnect. The timer is cancelled by Stop so a removed tenant is never
// resurrected by a stale retry.
func (s *Supervisor) onDisconnected(tenantID, reason string) {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sess.state = StateDisconnected
	sess.cancelRetryLocked()
	sess.retryTimer = time.AfterFunc(s.retryDelay, func() { s.retry(tenantID) })
	sess.mu.Unlock()

	s.logger.Warn("session disconnected",
		"tenant_id", tenantID,
		"reason", reason,
		"retry_in", s.retryDelay,
	)
}

// retry re-enters Start for a tenant that is still disconnected. A tenant
// stopped in the meantime is gone from the store and the retry is a no-op.
func (s *Supervisor) retry(tenantID string) {
	sess := s.store.Get(tenantID)
	if sess == nil {
		return
	}
	if sess.State() != StateDisconnected {
		return
	}

	s.logger.Info("reconnecting session", "tenant_id", tenantID)
	if _, err := s.Start(context.Background(), tenantID); err != nil {
		s.logger.Error("reconnect failed", "tenant_id", tenantID, "error", err)
	}
}

// onMessage forwards an inbound message from a ready session to the
// configured handler.
func (s *Supervisor) onMessage(tenantID string, msg transport.InboundMessage) {
	if s.handler == nil {
		return
	}
	sess := s.store.Get(tenantID)
	if sess == nil || sess.State() != StateReady {
		return
	}
	s.handler.HandleInbound(context.Background(), tenantID, msg)
}
