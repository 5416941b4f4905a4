package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/routeintel/fleetpanel/internal/domain/model"
	"github.com/routeintel/fleetpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AuditStore = (*AuditRepo)(nil)

// AuditRepo is the SQLite implementation of the AuditStore port. Events are
// append-only; nothing ever updates or deletes a row.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append records one credential write attempt.
func (r *AuditRepo) Append(ctx context.Context, event model.AuditEvent) error {
	const query = `
		INSERT INTO audit_events (id, at, action, device_id, device_name, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		event.ID,
		event.At.UTC().Format(time.RFC3339Nano),
		string(event.Action),
		event.DeviceID,
		event.DeviceName,
		string(event.Outcome),
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events, most recent first. limit caps the result;
// values below 1 fall back to a sane default.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	if limit < 1 {
		limit = 50
	}

	const query = `
		SELECT id, at, action, device_id, device_name, outcome, detail
		FROM audit_events
		ORDER BY at DESC
		LIMIT ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var event model.AuditEvent
		var at, action, outcome string
		if err := rows.Scan(&event.ID, &at, &action, &event.DeviceID, &event.DeviceName, &outcome, &event.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.At, err = parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("parse audit event time: %w", err)
		}
		event.Action = model.AuditAction(action)
		event.Outcome = model.AuditOutcome(outcome)

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// parseTime handles the timestamp formats SQLite hands back, which vary
// between CURRENT_TIMESTAMP defaults and values we wrote ourselves.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format %q", s)
}
