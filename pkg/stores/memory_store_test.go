package stores

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := testSession("sess-1", "memory")
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Mutating the caller's record must not affect the stored copy.
	session.Name = "mutated"

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Name != "memory" {
		t.Errorf("expected stored copy to be isolated, got name %s", got.Name)
	}

	if err := store.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.GetSession(ctx, "sess-1"); err == nil {
		t.Error("expected session to be deleted")
	}
}

func TestMemoryStore_DeleteSession_RemovesRuns(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.SaveSession(ctx, testSession("sess-1", "a")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.CreateRun(ctx, testRun("run-1", "sess-1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.GetRun(ctx, "run-1"); err == nil {
		t.Error("expected run to be removed with its session")
	}
}

func TestMemoryStore_CreateRun_Duplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateRun(ctx, testRun("run-1", "sess-1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := store.CreateRun(ctx, testRun("run-1", "sess-1")); err == nil {
		t.Error("expected error for duplicate run ID")
	}
}

func TestMemoryStore_ListRunsBySession_Order(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := testRun(id, "sess-1")
		run.StartedAt = base.Add(time.Duration(i) * time.Second)
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun %s failed: %v", id, err)
		}
	}

	records, err := store.ListRunsBySession(ctx, "sess-1", 2, 0)
	if err != nil {
		t.Fatalf("ListRunsBySession failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(records))
	}
	if records[0].ID != "run-c" || records[1].ID != "run-b" {
		t.Errorf("expected newest-first order, got %s, %s", records[0].ID, records[1].ID)
	}
}
