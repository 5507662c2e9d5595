package observability

import (
	"database/sql"
	"fmt"
)

// Schema is the DDL for the business event log.
const Schema = `
CREATE TABLE IF NOT EXISTS business_event_logs (
    event_id     TEXT PRIMARY KEY,
    event_type   TEXT NOT NULL,
    service_name TEXT NOT NULL,
    entity_type  TEXT NOT NULL DEFAULT '',
    entity_id    TEXT NOT NULL DEFAULT '',
    user_id      TEXT NOT NULL DEFAULT '',
    action       TEXT NOT NULL DEFAULT '',
    details      TEXT,
    success      INTEGER NOT NULL DEFAULT 1,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_type_time
    ON business_event_logs(event_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_user_time
    ON business_event_logs(user_id, created_at DESC);
`

// Init applies Schema to db.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("observability: init schema: %w", err)
	}
	return nil
}
