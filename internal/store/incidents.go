package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sbomarketplace/log-nexus-sub000/internal/incident"
)

const incidentColumns = `id, date_time, date_part, time_part, who, what, location, witnesses,
	category, case_number, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*incident.Incident, error) {
	inc := &incident.Incident{}
	err := row.Scan(&inc.ID, &inc.DateTime, &inc.DatePart, &inc.TimePart, &inc.Who, &inc.What,
		&inc.Where, &inc.Witnesses, &inc.CategoryOrIssue, &inc.CaseNumber, &inc.Notes,
		&inc.CreatedAt, &inc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return inc, nil
}

// Save inserts or overwrites inc and logs a create or edit event.
// Saving the ID of a deleted record restores it.
func (s *SQLiteStore) Save(ctx context.Context, inc *incident.Incident) error {
	if inc == nil {
		return fmt.Errorf("incident cannot be nil")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback()

	eventType := EventCreate
	if inc.ID == "" {
		inc.ID = NewID()
	} else {
		var createdAt time.Time
		err := tx.QueryRowContext(ctx, "SELECT created_at FROM incidents WHERE id = ?", inc.ID).Scan(&createdAt)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return fmt.Errorf("checking incident %s: %w", inc.ID, err)
		default:
			eventType = EventEdit
			inc.CreatedAt = createdAt
		}
	}

	if eventType == EventCreate {
		if inc.CreatedAt.IsZero() {
			inc.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO incidents (`+incidentColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inc.ID, inc.DateTime, inc.DatePart, inc.TimePart, inc.Who, inc.What, inc.Where,
			inc.Witnesses, inc.CategoryOrIssue, inc.CaseNumber, inc.Notes, inc.CreatedAt, now,
		)
	} else {
		_, err = writeIncident(ctx, tx, inc, now)
	}
	if err != nil {
		return fmt.Errorf("saving incident %s: %w", inc.ID, err)
	}
	inc.UpdatedAt = now

	if err := logEvent(ctx, tx, inc.ID, eventType, snapshotPatch(*inc)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing save: %w", err)
	}
	s.logger.Debug("incident saved", zap.String("id", inc.ID), zap.String("event", eventType))
	return nil
}

// writeIncident overwrites every field of an existing row and clears deleted_at.
func writeIncident(ctx context.Context, tx *sql.Tx, inc *incident.Incident, now time.Time) (sql.Result, error) {
	return tx.ExecContext(ctx,
		`UPDATE incidents SET date_time = ?, date_part = ?, time_part = ?, who = ?, what = ?,
			location = ?, witnesses = ?, category = ?, case_number = ?, notes = ?,
			updated_at = ?, deleted_at = NULL
		 WHERE id = ?`,
		inc.DateTime, inc.DatePart, inc.TimePart, inc.Who, inc.What, inc.Where,
		inc.Witnesses, inc.CategoryOrIssue, inc.CaseNumber, inc.Notes, now, inc.ID,
	)
}

// snapshotPatch renders every non-empty field of inc as a patch, for the
// create/edit event log.
func snapshotPatch(inc incident.Incident) incident.Patch {
	var p incident.Patch
	set := func(dst **string, v string) {
		if v != "" {
			*dst = incident.Str(v)
		}
	}
	set(&p.DateTime, inc.DateTime)
	set(&p.DatePart, inc.DatePart)
	set(&p.TimePart, inc.TimePart)
	set(&p.Who, inc.Who)
	set(&p.What, inc.What)
	set(&p.Where, inc.Where)
	set(&p.Witnesses, inc.Witnesses)
	set(&p.CategoryOrIssue, inc.CategoryOrIssue)
	set(&p.CaseNumber, inc.CaseNumber)
	set(&p.Notes, inc.Notes)
	return p
}

// GetByID retrieves an incident. Returns nil if not found or soft-deleted.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*incident.Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = ? AND deleted_at IS NULL`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting incident %s: %w", id, err)
	}
	return inc, nil
}

// List returns live incidents, newest first.
func (s *SQLiteStore) List(ctx context.Context, opts ListOpts) ([]*incident.Incident, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE deleted_at IS NULL`
	args := []any{}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing incidents: %w", err)
	}
	defer rows.Close()

	var out []*incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning incident row: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// Delete soft-deletes an incident by setting deleted_at.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		"UPDATE incidents SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", now, id,
	)
	if err != nil {
		return fmt.Errorf("deleting incident %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deleting incident %s: %w", id, ErrNotFound)
	}

	if err := logEvent(ctx, tx, id, EventDelete, incident.Patch{}); err != nil {
		return err
	}
	return tx.Commit()
}

// Update runs fn against the current record and applies its patch in the
// same transaction, so a concurrent edit cannot slip in between.
func (s *SQLiteStore) Update(ctx context.Context, id, eventType string, fn UpdateFunc) (*incident.Incident, incident.Patch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, incident.Patch{}, fmt.Errorf("beginning update: %w", err)
	}
	defer tx.Rollback()

	inc, err := scanIncident(tx.QueryRowContext(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = ? AND deleted_at IS NULL`, id))
	if err == sql.ErrNoRows {
		return nil, incident.Patch{}, fmt.Errorf("updating incident %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, incident.Patch{}, fmt.Errorf("reading incident %s: %w", id, err)
	}

	patch, err := fn(*inc)
	if err != nil {
		return nil, incident.Patch{}, fmt.Errorf("computing patch for %s: %w", id, err)
	}
	if patch.IsEmpty() {
		return inc, patch, nil
	}

	now := time.Now().UTC()
	patch.Apply(inc)
	if _, err := writeIncident(ctx, tx, inc, now); err != nil {
		return nil, incident.Patch{}, fmt.Errorf("writing incident %s: %w", id, err)
	}
	inc.UpdatedAt = now

	if err := logEvent(ctx, tx, id, eventType, patch); err != nil {
		return nil, incident.Patch{}, err
	}
	if err := tx.Commit(); err != nil {
		return nil, incident.Patch{}, fmt.Errorf("committing update: %w", err)
	}
	s.logger.Debug("incident updated",
		zap.String("id", id),
		zap.String("event", eventType),
		zap.Strings("fields", patch.Fields()))
	return inc, patch, nil
}
