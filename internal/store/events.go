package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
)

// logEvent appends an event inside tx.
func logEvent(ctx context.Context, tx *sql.Tx, incidentID, eventType string, patch incident.Patch) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encoding event patch: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO incident_events (incident_id, event_type, patch, created_at) VALUES (?, ?, ?, ?)`,
		incidentID, eventType, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("logging %s event: %w", eventType, err)
	}
	return nil
}

// ListEvents returns the event log of one incident, oldest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, incidentID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, incident_id, event_type, patch, created_at
		 FROM incident_events WHERE incident_id = ? ORDER BY id LIMIT ?`,
		incidentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.EventType, &e.Patch, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DecodePatch parses the patch JSON of an event.
func (e *Event) DecodePatch() (incident.Patch, error) {
	var p incident.Patch
	if err := json.Unmarshal([]byte(e.Patch), &p); err != nil {
		return p, fmt.Errorf("decoding event %d patch: %w", e.ID, err)
	}
	return p, nil
}

// Stats returns current database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{ByCategory: map[string]int64{}}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM incidents WHERE deleted_at IS NULL", &stats.IncidentCount},
		{"SELECT COUNT(*) FROM incidents WHERE deleted_at IS NOT NULL", &stats.DeletedCount},
		{"SELECT COUNT(*) FROM incident_events", &stats.EventCount},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("querying stats (%s): %w", q.query, err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM incidents
		 WHERE deleted_at IS NULL AND category != '' GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("querying category counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		stats.ByCategory[cat] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Only meaningful for file-based DBs.
	if s.dbPath != ":memory:" {
		var pageCount, pageSize int64
		s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
		s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeBytes = pageCount * pageSize
	}

	return stats, nil
}
