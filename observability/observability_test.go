package observability

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/progsync/dbopen"
)

func setupObsDB(t *testing.T) *EventLogger {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return NewEventLogger(db, "progressd")
}

func TestInit_Idempotent(t *testing.T) {
	db := dbopen.OpenMemory(t)
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	if err := Init(db); err != nil {
		t.Fatalf("second init: %v", err)
	}
}

func TestLogEvent_AndRecent(t *testing.T) {
	l := setupObsDB(t)
	ctx := context.Background()

	l.LogEvent(ctx, BusinessEvent{
		EventType:  "progress.upsert",
		EntityType: "progress",
		EntityID:   "jobs",
		UserID:     "u1",
		Action:     "upsert",
		Details:    map[string]any{"items": 3},
		Success:    true,
	})
	l.LogEvent(ctx, BusinessEvent{EventType: "auth.signin", UserID: "u1", Success: true})

	events, err := l.Recent(ctx, "progress.upsert", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.EntityID != "jobs" || e.UserID != "u1" || !e.Success {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.Details != `{"items":3}` {
		t.Fatalf("details = %q", e.Details)
	}
}

func TestLogEvent_NilLogger(t *testing.T) {
	var l *EventLogger
	l.LogEvent(context.Background(), BusinessEvent{EventType: "x"})
}

func TestCleanup(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	now := time.Now()
	old := NewEventLogger(db, "test", WithClock(func() time.Time { return now.Add(-48 * time.Hour) }))
	fresh := NewEventLogger(db, "test", WithClock(func() time.Time { return now }))
	ctx := context.Background()

	old.LogEvent(ctx, BusinessEvent{EventType: "e", Success: true})
	fresh.LogEvent(ctx, BusinessEvent{EventType: "e", Success: true})

	n, err := fresh.Cleanup(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
	events, _ := fresh.Recent(ctx, "e", 10)
	if len(events) != 1 {
		t.Fatalf("remaining = %d, want 1", len(events))
	}

	if n, _ := fresh.Cleanup(ctx, 0); n != 0 {
		t.Fatalf("zero retention deleted %d rows", n)
	}
}
