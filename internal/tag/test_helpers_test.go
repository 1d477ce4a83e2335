package tag

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nixstrav/mng-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the tags schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "tag-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE tags (
			epc TEXT PRIMARY KEY,
			alias TEXT NOT NULL UNIQUE,
			alias_group TEXT,
			room_number TEXT,
			notes TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE INDEX idx_tags_status ON tags(status);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying tags migration: %v", err)
	}

	return db
}

// testRegistry wires a registry over a temp database and a temp mirror.
func testRegistry(t *testing.T) (*Registry, *SQLiteRepository, *Mirror) {
	t.Helper()

	repo := NewRepository(testDB(t))
	mirror := NewMirror(filepath.Join(t.TempDir(), "known_tags.json"))
	return NewRegistry(repo, mirror, nil, quietLogger()), repo, mirror
}

func quietLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.DiscardHandler)}
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o600)
}

func mustCreate(t *testing.T, repo *SQLiteRepository, tag Tag) *Tag {
	t.Helper()
	if tag.Status == "" {
		tag.Status = StatusActive
	}
	if err := repo.Create(t.Context(), &tag); err != nil {
		t.Fatalf("creating tag %s: %v", tag.EPC, err)
	}
	return &tag
}
