package events

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB builds an events database the way the bridge lays it out.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "events-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE events (
			id INTEGER PRIMARY KEY,
			reader_id TEXT,
			tag TEXT,
			ts_client TEXT,
			received_at TEXT,
			source_ip TEXT,
			fired INTEGER,
			reason TEXT
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating events schema: %v", err)
	}

	return db
}

func seedEvents(t *testing.T, db *sql.DB) {
	t.Helper()

	rows := []struct {
		reader, tag, receivedAt, reason string
		fired                           int
	}{
		{"gate-1", "E2AABB01", "2026-02-01T08:00:00Z", "granted", 1},
		{"gate-1", "E2AABB02", "2026-02-01T08:05:00Z", "unknown_tag", 0},
		{"gate-2", "E2AABB01", "2026-02-01T08:10:00Z", "granted", 1},
		{"gate-2", "E2AABB03", "2026-02-01T08:15:00Z", "relay_error", 0},
		{"gate-1", "E2AABB01", "2026-02-01T08:20:00Z", "granted", 1},
	}
	for _, r := range rows {
		_, err := db.Exec(
			`INSERT INTO events (reader_id, tag, ts_client, received_at, source_ip, fired, reason)
			 VALUES (?, ?, ?, ?, '10.0.0.20', ?, ?)`,
			r.reader, r.tag, r.receivedAt, r.receivedAt, r.fired, r.reason)
		if err != nil {
			t.Fatalf("seeding event: %v", err)
		}
	}
}

func TestRepository_NilHandleReturnsEmpty(t *testing.T) {
	repo := NewRepository(nil)

	if repo.Available() {
		t.Error("Available() should be false without a database")
	}

	evs, total, err := repo.List(t.Context(), Filter{})
	if err != nil || total != 0 || len(evs) != 0 {
		t.Errorf("List() = %v, %d, %v, want empty", evs, total, err)
	}

	seen, err := repo.LastSeenForTags(t.Context(), []string{"E2AABB01"})
	if err != nil || len(seen) != 0 {
		t.Errorf("LastSeenForTags() = %v, %v, want empty", seen, err)
	}

	summaries, err := repo.ReaderSummaries(t.Context())
	if err != nil || len(summaries) != 0 {
		t.Errorf("ReaderSummaries() = %v, %v, want empty", summaries, err)
	}
}

func TestRepository_ListNewestFirstWithFilters(t *testing.T) {
	db := testDB(t)
	seedEvents(t, db)
	repo := NewRepository(db)

	all, total, err := repo.List(t.Context(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 5 || len(all) != 5 {
		t.Fatalf("List() total = %d, rows = %d, want 5/5", total, len(all))
	}
	if all[0].ReceivedAt != "2026-02-01T08:20:00Z" {
		t.Errorf("first row = %q, want newest", all[0].ReceivedAt)
	}

	byReader, total, _ := repo.List(t.Context(), Filter{ReaderID: "gate-2"})
	if total != 2 || len(byReader) != 2 {
		t.Errorf("reader filter total = %d, want 2", total)
	}

	byTag, total, _ := repo.List(t.Context(), Filter{Tag: "E2AABB01"})
	if total != 3 || len(byTag) != 3 {
		t.Errorf("tag filter total = %d, want 3", total)
	}

	windowed, total, _ := repo.List(t.Context(), Filter{
		From: "2026-02-01T08:05:00Z",
		To:   "2026-02-01T08:10:00Z",
	})
	if total != 2 || len(windowed) != 2 {
		t.Errorf("window filter total = %d, want 2", total)
	}

	// Pagination.
	page2, total, _ := repo.List(t.Context(), Filter{Page: 2, PageSize: 2})
	if total != 5 || len(page2) != 2 {
		t.Errorf("page 2 total = %d, rows = %d, want 5/2", total, len(page2))
	}
	if page2[0].ReceivedAt != "2026-02-01T08:10:00Z" {
		t.Errorf("page 2 first row = %q", page2[0].ReceivedAt)
	}
}

func TestRepository_LastSeenForTags(t *testing.T) {
	db := testDB(t)
	seedEvents(t, db)
	repo := NewRepository(db)

	seen, err := repo.LastSeenForTags(t.Context(), []string{"E2AABB01", "E2AABB02", "NEVER-SEEN"})
	if err != nil {
		t.Fatalf("LastSeenForTags() error = %v", err)
	}

	if seen["E2AABB01"] != "2026-02-01T08:20:00Z" {
		t.Errorf("E2AABB01 last seen = %q, want latest read", seen["E2AABB01"])
	}
	if seen["E2AABB02"] != "2026-02-01T08:05:00Z" {
		t.Errorf("E2AABB02 last seen = %q", seen["E2AABB02"])
	}
	if _, ok := seen["NEVER-SEEN"]; ok {
		t.Error("never-seen tag should be absent from the map")
	}

	empty, err := repo.LastSeenForTags(t.Context(), nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("LastSeenForTags(nil) = %v, %v, want empty", empty, err)
	}
}

func TestRepository_ReaderSummaries(t *testing.T) {
	db := testDB(t)
	seedEvents(t, db)
	repo := NewRepository(db)

	summaries, err := repo.ReaderSummaries(t.Context())
	if err != nil {
		t.Fatalf("ReaderSummaries() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("ReaderSummaries() returned %d readers, want 2", len(summaries))
	}

	byReader := make(map[string]ReaderSummary)
	for _, s := range summaries {
		byReader[s.ReaderID] = s
	}
	gate1 := byReader["gate-1"]
	if gate1.Total != 3 || gate1.FiredCount != 2 || gate1.LastEvent != "2026-02-01T08:20:00Z" {
		t.Errorf("gate-1 summary = %+v", gate1)
	}
}

func TestRepository_RecentErrorsAndUnknownTags(t *testing.T) {
	db := testDB(t)
	seedEvents(t, db)
	repo := NewRepository(db)

	errs, err := repo.RecentErrors(t.Context(), 10)
	if err != nil {
		t.Fatalf("RecentErrors() error = %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("RecentErrors() returned %d, want 2", len(errs))
	}
	if errs[0].Reason != "relay_error" {
		t.Errorf("newest error reason = %q, want relay_error", errs[0].Reason)
	}

	unknown, err := repo.UnknownTags(t.Context(), 10)
	if err != nil {
		t.Fatalf("UnknownTags() error = %v", err)
	}
	if len(unknown) != 1 || unknown[0].Tag != "E2AABB02" || unknown[0].Count != 1 {
		t.Errorf("UnknownTags() = %+v", unknown)
	}
}

func TestRepository_ForTag(t *testing.T) {
	db := testDB(t)
	seedEvents(t, db)
	repo := NewRepository(db)

	evs, err := repo.ForTag(t.Context(), "E2AABB01", 2)
	if err != nil {
		t.Fatalf("ForTag() error = %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("ForTag() returned %d events, want limit 2", len(evs))
	}
	if evs[0].ReceivedAt != "2026-02-01T08:20:00Z" {
		t.Errorf("first event = %q, want newest", evs[0].ReceivedAt)
	}
}
