// ABOUTME: Tenant session data types and the thread-safe session store.
// ABOUTME: Holds the authoritative tenant -> session mapping with lifecycle state.

package session

import (
	"sort"
	"sync"
	"time"

	"github.com/conversia/flow-gateway/internal/transport"
)

// State is the lifecycle state of a tenant session.
type State int

const (
	StateUnstarted State = iota
	StateAwaitingPairing
	StateAuthenticated
	StateReady
	StateDisconnected
)

// String returns the wire representation of the state.
func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateAwaitingPairing:
		return "awaiting_pairing"
	case StateAuthenticated:
		return "authenticated"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// startable reports whether a Start call should build a fresh transport for
// a session in this state. Active sessions are left untouched.
func (s State) startable() bool {
	return s == StateUnstarted || s == StateDisconnected
}

// Session is the supervisor's record for one tenant. The transport handle is
// exclusively owned by this record; it is never shared across tenants.
//
// Fields are guarded by mu. The store lock is never held while a session's
// own lock is taken, so unrelated tenants do not serialize on each other.
type Session struct {
	ID string

	mu            sync.Mutex
	state         State
	pairingCode   string
	transport     transport.Transport
	retryTimer    *time.Timer
	credentialDir string
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PairingCode returns the pending pairing artifact, or "" when none.
func (s *Session) PairingCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairingCode
}

// cancelRetryLocked stops a pending reconnect, if any. Must hold mu.
func (s *Session) cancelRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// Store is a thread-safe mapping of tenant ID to session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for the tenant, creating it if absent.
// The lookup-and-create is atomic so concurrent Start calls for the same
// tenant observe a single session record.
func (st *Store) GetOrCreate(tenantID string) (sess *Session, created bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.sessions[tenantID]; ok {
		return sess, false
	}
	sess = &Session{ID: tenantID, state: StateUnstarted}
	st.sessions[tenantID] = sess
	return sess, true
}

// Get returns the session for the tenant, or nil.
func (st *Store) Get(tenantID string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[tenantID]
}

// Remove deletes the tenant's session record.
func (st *Store) Remove(tenantID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, tenantID)
}

// ListIDs returns all tenant IDs in sorted order.
func (st *Store) ListIDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
