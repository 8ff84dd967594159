package store

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// schemaVersion is bumped whenever a migration is added below.
const schemaVersion = "2"

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		s.logger.Debug("bootstrapping schema", zap.String("db", s.dbPath))
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	// meta exists from here on
	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	if err := s.migrateLookupIndexes(); err != nil {
		return fmt.Errorf("migrating lookup indexes: %w", err)
	}

	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS incidents (
			id           TEXT PRIMARY KEY,
			date_time    TEXT NOT NULL DEFAULT '',
			date_part    TEXT NOT NULL DEFAULT '',
			time_part    TEXT NOT NULL DEFAULT '',
			who          TEXT NOT NULL DEFAULT '',
			what         TEXT NOT NULL DEFAULT '',
			location     TEXT NOT NULL DEFAULT '',
			witnesses    TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			case_number  TEXT NOT NULL DEFAULT '',
			notes        TEXT NOT NULL DEFAULT '',
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			deleted_at   DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS incident_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			incident_id  TEXT NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
			event_type   TEXT NOT NULL CHECK(event_type IN ('create','edit','prefill','organize','delete')),
			patch        TEXT NOT NULL DEFAULT '{}',
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_incident_events_incident ON incident_events(incident_id, id)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing bootstrap DDL: %w\nStatement: %s", err, stmt)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bootstrap DDL: %w", err)
	}
	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	value, err := s.getMetaValue(key)
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) getMetaValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

func (s *SQLiteStore) seedMeta() error {
	defaults := map[string]string{
		"schema_version": schemaVersion,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}

	for k, v := range defaults {
		_, err := s.db.Exec(
			"INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v,
		)
		if err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

// migrateLookupIndexes adds the indexes behind category listing and case
// number lookups. Guarded by a meta flag so it runs once per database.
func (s *SQLiteStore) migrateLookupIndexes() error {
	done, err := s.isMetaFlagEnabled("lookup_indexes_v1")
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_incidents_category ON incidents(category) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_case_number ON incidents(case_number) WHERE case_number != ''`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	if _, err := s.db.Exec("UPDATE meta SET value = ? WHERE key = 'schema_version'", schemaVersion); err != nil {
		return fmt.Errorf("updating schema version: %w", err)
	}
	s.logger.Debug("migration applied", zap.String("name", "lookup_indexes_v1"))
	return s.setMetaFlag("lookup_indexes_v1")
}
