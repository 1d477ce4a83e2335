package auth

import (
	"testing"
)

func TestSeedAdmin_CreatesOnEmptyDatabase(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	password, err := SeedAdmin(t.Context(), repo, testLogger())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password == "" {
		t.Fatal("SeedAdmin() should return the generated password")
	}

	admin, err := repo.GetByUsername(t.Context(), "admin")
	if err != nil {
		t.Fatalf("GetByUsername(admin) error = %v", err)
	}
	if admin.Role != RoleAdmin || !admin.IsActive {
		t.Errorf("seed admin = %+v, want active admin", admin)
	}

	ok, err := VerifyPassword(password, admin.PasswordHash)
	if err != nil || !ok {
		t.Errorf("generated password should verify against the stored hash (ok=%v, err=%v)", ok, err)
	}
}

func TestSeedAdmin_SkipsWhenUsersExist(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	seedTestUser(t, db, "ana", RoleViewer)

	password, err := SeedAdmin(t.Context(), repo, testLogger())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "" {
		t.Error("SeedAdmin() should be a no-op when any user exists")
	}

	count, _ := repo.Count(t.Context())
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestSeedAdmin_Idempotent(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)

	first, err := SeedAdmin(t.Context(), repo, testLogger())
	if err != nil {
		t.Fatalf("first SeedAdmin() error = %v", err)
	}
	if first == "" {
		t.Fatal("first SeedAdmin() should create the admin")
	}

	second, err := SeedAdmin(t.Context(), repo, testLogger())
	if err != nil {
		t.Fatalf("second SeedAdmin() error = %v", err)
	}
	if second != "" {
		t.Error("second SeedAdmin() should skip")
	}
}
