package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	led, err := Open(filepath.Join(t.TempDir(), "events", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = led.Close()
	})
	return led
}

func TestRecordAndList(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	if err := led.Record(ctx, "downloads", "vid-1", "commit", 1024, "abc123"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := led.Record(ctx, "downloads", "vid-1", "invalidate", 0, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, err := led.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	// Newest first.
	if events[0].Event != "invalidate" || events[1].Event != "commit" {
		t.Errorf("order wrong: %s then %s", events[0].Event, events[1].Event)
	}
	if events[1].SizeBytes != 1024 || events[1].Checksum != "abc123" {
		t.Errorf("commit event = %+v", events[1])
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("timestamp missing")
	}
}

func TestListHonorsLimit(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := led.Record(ctx, "downloads", "vid", "commit", int64(i), ""); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	events, err := led.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3", len(events))
	}

	all, err := led.List(ctx, 0)
	if err != nil {
		t.Fatalf("List default: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("default limit returned %d events", len(all))
	}
}

func TestListEmptyLedger(t *testing.T) {
	led := openTestLedger(t)
	events, err := led.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events from empty ledger", len(events))
	}
}

func TestPruneRemovesOldEvents(t *testing.T) {
	led := openTestLedger(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339Nano)
	if _, err := led.db.ExecContext(ctx,
		`INSERT INTO cache_events (namespace, key, event, created_at) VALUES (?, ?, ?, ?)`,
		"downloads", "ancient", "commit", old); err != nil {
		t.Fatalf("seed old event: %v", err)
	}
	if err := led.Record(ctx, "downloads", "recent", "commit", 1, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	pruned, err := led.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	events, err := led.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 || events[0].Key != "recent" {
		t.Errorf("events = %+v", events)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	led, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := led.Record(context.Background(), "downloads", "vid", "commit", 1, "x"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := led.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("history lost across reopen: %d events", len(events))
	}
}
