// ABOUTME: SQLite implementation of the tenant registry store.
// ABOUTME: Creates its schema on open and uses WAL mode for concurrent reads.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the registry database at the given
// path. Parent directories are created if needed. Use ":memory:" for an
// ephemeral registry.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each pooled connection to ":memory:" would get its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("tenant registry initialized", "path", path)
	return s, nil
}

// createSchema creates the registry table if it doesn't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			registered_at DATETIME NOT NULL,
			last_seen_at DATETIME NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveTenant registers a tenant or refreshes its last-seen timestamp.
func (s *SQLiteStore) SaveTenant(ctx context.Context, tenantID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, registered_at, last_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen_at = excluded.last_seen_at
	`, tenantID, now, now)
	if err != nil {
		return fmt.Errorf("saving tenant %s: %w", tenantID, err)
	}
	return nil
}

// GetTenant returns a tenant record, or ErrNotFound.
func (s *SQLiteStore) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, registered_at, last_seen_at FROM tenants WHERE id = ?
	`, tenantID)

	var t Tenant
	if err := row.Scan(&t.ID, &t.RegisteredAt, &t.LastSeenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting tenant %s: %w", tenantID, err)
	}
	return &t, nil
}

// ListTenants returns all registered tenants ordered by registration.
func (s *SQLiteStore) ListTenants(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, registered_at, last_seen_at FROM tenants ORDER BY registered_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.RegisteredAt, &t.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

// DeleteTenant removes a tenant. Deleting an unknown tenant is a no-op.
func (s *SQLiteStore) DeleteTenant(ctx context.Context, tenantID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, tenantID); err != nil {
		return fmt.Errorf("deleting tenant %s: %w", tenantID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
