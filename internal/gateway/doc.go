// Package gateway assembles the server and exposes the HTTP API.
//
// # Overview
//
// The Gateway wires the session supervisor, conversation engine, flow
// registry, and tenant registry together, and serves the WordPress-facing
// HTTP API under a configurable path prefix (default /wp-json/convers-ia/v1).
//
// # Endpoints
//
//   - GET/POST /connect: Start (or confirm) a tenant session
//   - GET  /qr: Pending pairing code as a base64 PNG, or null
//   - GET  /status: Whether the tenant session is ready
//   - POST /send-message: Outbound message to a recipient
//   - POST /disconnect: Stop the session and unregister the tenant
//   - GET  /tenants: All known tenants and their states
//   - GET  /health: Liveness probe, outside the prefix and outside auth
//
// Tenants select themselves with a client_id query parameter (or JSON field
// on /send-message); an absent client_id resolves to the configured default,
// keeping single-tenant deployments zero-config.
//
// # Startup and Shutdown
//
// Run starts the flow refresh loop, restores sessions for every tenant in
// the registry, and serves HTTP until the context is canceled. Shutdown
// stops the HTTP server, all sessions, the refresh loop, and the registry,
// in that order.
package gateway
