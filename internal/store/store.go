// Package store provides the SQLite storage layer for logged incidents.
//
// All data lives in a single SQLite database file:
// - incident records, soft-deleted rather than removed
// - an append-only event log of every change applied to a record
// - a meta table tracking schema bootstrap and migrations
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.lognexus/lognexus.db"

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// ErrNotFound is returned by Update when the record is missing or deleted.
var ErrNotFound = errors.New("incident not found")

// Event types recorded in the event log.
const (
	EventCreate   = "create"
	EventEdit     = "edit"
	EventPrefill  = "prefill"
	EventOrganize = "organize"
	EventDelete   = "delete"
)

// Event is one entry in the append-only event log.
type Event struct {
	ID         int64     `json:"id"`
	IncidentID string    `json:"incidentId"`
	EventType  string    `json:"eventType"`
	Patch      string    `json:"patch"` // JSON of the applied incident.Patch
	CreatedAt  time.Time `json:"createdAt"`
}

// ListOpts controls pagination and filtering for List.
type ListOpts struct {
	Limit    int
	Offset   int
	Category string // exact categoryOrIssue match
}

// StoreStats holds counts about the store.
type StoreStats struct {
	IncidentCount int64            `json:"incidentCount"`
	DeletedCount  int64            `json:"deletedCount"`
	EventCount    int64            `json:"eventCount"`
	ByCategory    map[string]int64 `json:"byCategory"`
	DBSizeBytes   int64            `json:"dbSizeBytes"`
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
	Logger *zap.Logger
}

// UpdateFunc computes a patch from the current record inside Update's
// transaction. Returning an error aborts the update.
type UpdateFunc func(current incident.Incident) (incident.Patch, error)

// Store defines the incident storage interface.
type Store interface {
	// Save inserts inc, assigning an ID when empty, or overwrites the
	// record with the same ID.
	Save(ctx context.Context, inc *incident.Incident) error
	// GetByID returns nil, nil when the record does not exist or is deleted.
	GetByID(ctx context.Context, id string) (*incident.Incident, error)
	List(ctx context.Context, opts ListOpts) ([]*incident.Incident, error)
	Delete(ctx context.Context, id string) error

	// Update reads the record, applies the patch fn returns and logs it,
	// all in one transaction. An empty patch writes nothing.
	Update(ctx context.Context, id, eventType string, fn UpdateFunc) (*incident.Incident, incident.Patch, error)

	ListEvents(ctx context.Context, incidentID string, limit int) ([]*Event, error)
	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ExpandPath(DefaultDBPath)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.DBPath == ":memory:" {
		// Every new connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
		logger: logger,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// NewID returns a fresh incident ID.
func NewID() string {
	return uuid.NewString()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ExpandPath expands ~ to home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
