package stores

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store := NewSQLiteStore(DefaultConfig(path))

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func testSession(id, name string) *SessionRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &SessionRecord{
		ID:        id,
		Name:      name,
		Status:    "building",
		Document:  []byte(`{"units":{}}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testRun(id, sessionID string) *RunRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &RunRecord{
		ID:          id,
		SessionID:   sessionID,
		Success:     true,
		FinalState:  "completed",
		Message:     "solve converged",
		History:     []byte(`[]`),
		StartedAt:   now.Add(-time.Minute),
		CompletedAt: now,
	}
}

func TestSQLiteStore_SaveSession_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1", "brine-loop")
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Name != "brine-loop" {
		t.Errorf("expected name brine-loop, got %s", got.Name)
	}
	if got.Status != "building" {
		t.Errorf("expected status building, got %s", got.Status)
	}
	if string(got.Document) != `{"units":{}}` {
		t.Errorf("unexpected document: %s", got.Document)
	}
}

func TestSQLiteStore_SaveSession_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	session := testSession("sess-1", "first")
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	session.Name = "renamed"
	session.Status = "solved"
	session.UpdatedAt = session.UpdatedAt.Add(time.Minute)
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("second SaveSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Name != "renamed" {
		t.Errorf("expected updated name, got %s", got.Name)
	}
	if got.Status != "solved" {
		t.Errorf("expected updated status, got %s", got.Status)
	}
}

func TestSQLiteStore_GetSession_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing session")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got: %v", err)
	}
}

func TestSQLiteStore_ListSessions_OrderAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, name := range []string{"oldest", "middle", "newest"} {
		session := testSession(name, name)
		session.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.SaveSession(ctx, session); err != nil {
			t.Fatalf("SaveSession %s failed: %v", name, err)
		}
	}

	records, err := store.ListSessions(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(records))
	}
	if records[0].ID != "newest" || records[1].ID != "middle" {
		t.Errorf("expected newest-first order, got %s, %s", records[0].ID, records[1].ID)
	}

	records, err = store.ListSessions(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListSessions with offset failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "oldest" {
		t.Errorf("expected oldest at offset 2, got %+v", records)
	}
}

func TestSQLiteStore_DeleteSession_CascadesRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveSession(ctx, testSession("sess-1", "doomed")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.CreateRun(ctx, testRun("run-1", "sess-1")); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	if _, err := store.GetSession(ctx, "sess-1"); err == nil {
		t.Error("expected session to be deleted")
	}
	if _, err := store.GetRun(ctx, "run-1"); err == nil {
		t.Error("expected run to cascade-delete with its session")
	}
}

func TestSQLiteStore_DeleteSession_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.DeleteSession(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing session")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got: %v", err)
	}
}

func TestSQLiteStore_Run_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveSession(ctx, testSession("sess-1", "runs")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	run := testRun("run-1", "sess-1")
	run.Success = false
	run.FinalState = "failed"
	run.Message = "pipeline failed at solving"
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Success {
		t.Error("expected success false")
	}
	if got.FinalState != "failed" {
		t.Errorf("expected final state failed, got %s", got.FinalState)
	}
	if got.Message != "pipeline failed at solving" {
		t.Errorf("unexpected message: %s", got.Message)
	}
}

func TestSQLiteStore_ListRunsBySession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveSession(ctx, testSession("sess-1", "a")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.SaveSession(ctx, testSession("sess-2", "b")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"run-1", "run-2"} {
		run := testRun(id, "sess-1")
		run.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun %s failed: %v", id, err)
		}
	}
	if err := store.CreateRun(ctx, testRun("run-3", "sess-2")); err != nil {
		t.Fatalf("CreateRun run-3 failed: %v", err)
	}

	records, err := store.ListRunsBySession(ctx, "sess-1", 10, 0)
	if err != nil {
		t.Fatalf("ListRunsBySession failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 runs for sess-1, got %d", len(records))
	}
	if records[0].ID != "run-2" || records[1].ID != "run-1" {
		t.Errorf("expected newest-first order, got %s, %s", records[0].ID, records[1].ID)
	}
}

func TestSQLiteStore_Migrate_Idempotent(t *testing.T) {
	store := newTestStore(t)

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestSQLiteStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}

	uninitialized := NewSQLiteStore(DefaultConfig("unused.db"))
	if err := uninitialized.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for uninitialized store")
	}
}
