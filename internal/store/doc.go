// Package store persists the tenant registry using SQLite.
//
// # Overview
//
// The registry records which tenants have connected so the gateway can
// restore their sessions on boot without the operator re-issuing /connect.
// Session credentials themselves live on disk with the transport; the
// registry only needs tenant identity and timestamps.
//
// # SQLite Configuration
//
// The store uses SQLite (modernc.org/sqlite, no cgo) with WAL mode for
// concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// Use NewSQLiteStore(":memory:") for tests; the pool is capped at one
// connection in that case so every query sees the same database.
//
// # Testing
//
// NewMockStore() provides an in-memory Store for unit tests that do not
// want SQLite at all.
package store
