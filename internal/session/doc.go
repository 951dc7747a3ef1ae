// Package session manages the per-tenant messaging-session lifecycle.
//
// # Overview
//
// Each tenant (a WordPress site) owns at most one messaging session. The
// session pairs with the messaging platform via a scanned code, then moves
// through a fixed lifecycle:
//
//	unstarted -> awaiting_pairing -> authenticated -> ready
//	ready -> disconnected -> awaiting_pairing (automatic retry)
//
// # Supervisor
//
// The Supervisor owns the state machine for every tenant:
//
//	sup := session.NewSupervisor(session.SupervisorParams{
//	    Store:          session.NewStore(),
//	    Factory:        factory,
//	    CredentialRoot: "/var/lib/flow-gateway/sessions",
//	    RetryDelay:     10 * time.Second,
//	})
//
// Key operations:
//
//   - Start(ctx, tenantID): Bring up a session; idempotent for active tenants
//   - Stop(tenantID): Release the transport and forget the tenant
//   - Send(ctx, tenantID, recipient, msg): Outbound send, ready sessions only
//   - State(tenantID): Current lifecycle state
//   - PairingArtifact(tenantID): Pending pairing code, if any
//
// # Credentials
//
// Every tenant gets a durable credential directory under CredentialRoot,
// keyed by tenant ID. The transport persists its auth material there, so a
// restarted gateway re-attaches sessions without re-pairing.
//
// # Reconnection
//
// A dropped session schedules exactly one flat-delay reconnect. The timer is
// cancelled by Stop and by an explicit Start, so a removed tenant is never
// resurrected and an operator-triggered start never races the retry.
//
// # Thread Safety
//
// The Store and every Session are thread-safe. The store lock is never held
// while a session's own lock is taken, so tenants do not serialize on each
// other.
package session
