package database

import (
	"context"
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantDesc    string
		wantOK      bool
	}{
		{"valid", "0001_users.sql", "0001", "users", true},
		{"multi word description", "0003_audit_log.sql", "0003", "audit_log", true},
		{"not sql", "0001_users.txt", "", "", false},
		{"no version", "_users.sql", "", "", false},
		{"no description", "0001_.sql", "", "", false},
		{"no separator", "0001users.sql", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, desc, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if version != tt.wantVersion || desc != tt.wantDesc {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q), want (%q, %q)",
					tt.filename, version, desc, tt.wantVersion, tt.wantDesc)
			}
		})
	}
}

func TestMigrate_NoEmbeddedFS(t *testing.T) {
	db := openTestDB(t)

	// With no registered MigrationsFS the run is a no-op that still
	// creates the tracking table.
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("schema_migrations table missing: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no applied migrations, got %d", count)
	}
}
