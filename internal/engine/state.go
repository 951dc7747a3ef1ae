// ABOUTME: Per-sender conversation state store keyed by (tenant, sender).
// ABOUTME: Tracks the node each sender was last placed at.

package engine

import "sync"

type stateKey struct {
	tenantID string
	senderID string
}

// States maps (tenant, sender) to the sender's current node id. Sender
// identity comes from the messaging platform and is not a security
// boundary; the tenant component keeps senders from colliding across
// tenants, nothing more.
type States struct {
	mu sync.Mutex
	m  map[stateKey]string
}

// NewStates creates an empty state store.
func NewStates() *States {
	return &States{m: make(map[stateKey]string)}
}

// Get returns the current node id for the sender, if any.
func (s *States) Get(tenantID, senderID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodeID, ok := s.m[stateKey{tenantID, senderID}]
	return nodeID, ok
}

// Set places the sender at a node.
func (s *States) Set(tenantID, senderID, nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[stateKey{tenantID, senderID}] = nodeID
}

// Clear destroys the sender's conversation state. The next message from the
// sender anchors at the flow's entry node again.
func (s *States) Clear(tenantID, senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, stateKey{tenantID, senderID})
}

// Len returns the number of tracked conversations.
func (s *States) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
