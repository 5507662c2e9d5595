// Package observability records business events (progress writes, sign-ins)
// in SQLite so operators can audit who saved what and when, independently of
// the process logs.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/progsync/idgen"
)

// BusinessEvent represents a domain-level event to record.
type BusinessEvent struct {
	EventType   string
	ServiceName string
	EntityType  string
	EntityID    string
	UserID      string
	Action      string
	Details     map[string]any // optional, stored as JSON
	Success     bool
}

// Event is a stored BusinessEvent as returned by Recent.
type Event struct {
	ID         string
	EventType  string
	EntityType string
	EntityID   string
	UserID     string
	Action     string
	Details    string
	Success    bool
	CreatedAt  time.Time
}

// EventLogger writes business events and manages retention cleanup.
type EventLogger struct {
	db      *sql.DB
	service string
	newID   idgen.Generator
	now     func() time.Time
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithClock sets the clock used for created_at (tests).
func WithClock(now func() time.Time) EventLoggerOption {
	return func(l *EventLogger) { l.now = now }
}

// NewEventLogger creates a logger backed by db. The schema must already be
// applied (see Init).
func NewEventLogger(db *sql.DB, service string, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:      db,
		service: service,
		newID:   idgen.Prefixed("evt_", idgen.Default),
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a business event. Errors are logged via slog and never
// propagate: a failing event store must not fail the write it describes.
func (l *EventLogger) LogEvent(ctx context.Context, event BusinessEvent) {
	if l == nil {
		return
	}
	var details sql.NullString
	if len(event.Details) > 0 {
		if data, err := json.Marshal(event.Details); err == nil {
			details = sql.NullString{String: string(data), Valid: true}
		}
	}
	service := event.ServiceName
	if service == "" {
		service = l.service
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO business_event_logs (
			event_id, event_type, service_name, entity_type, entity_id,
			user_id, action, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		l.newID(), event.EventType, service, event.EntityType, event.EntityID,
		event.UserID, event.Action, details, event.Success, l.now().UnixMilli())
	if err != nil {
		slog.ErrorContext(ctx, "observability event log failed", "error", err, "event_type", event.EventType)
	}
}

// Recent returns the newest events of the given type, newest first.
func (l *EventLogger) Recent(ctx context.Context, eventType string, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, event_type, entity_type, entity_id, user_id, action,
		       COALESCE(details, ''), success, created_at
		FROM business_event_logs WHERE event_type = ?
		ORDER BY created_at DESC, event_id DESC LIMIT ?`, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("observability: recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ms int64
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityType, &e.EntityID, &e.UserID,
			&e.Action, &e.Details, &e.Success, &ms); err != nil {
			return nil, fmt.Errorf("observability: scan: %w", err)
		}
		e.CreatedAt = time.UnixMilli(ms)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Cleanup deletes events older than retention. Zero disables cleanup.
func (l *EventLogger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := l.now().Add(-retention).UnixMilli()
	res, err := l.db.ExecContext(ctx, `DELETE FROM business_event_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("observability: cleanup: %w", err)
	}
	return res.RowsAffected()
}
