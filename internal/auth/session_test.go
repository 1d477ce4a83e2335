package auth

import (
	"errors"
	"testing"
	"time"
)

func testUser(role Role) *User {
	return &User{ID: "usr-test1234", Username: "ana", Role: role, IsActive: true}
}

func TestSessionStore_CreateAndResolve(t *testing.T) {
	store := NewSessionStore(time.Hour)

	sess, err := store.Create(testUser(RoleOperator))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.ID == "" || sess.CSRFToken == "" {
		t.Fatal("session should carry a random ID and CSRF token")
	}

	got, err := store.Resolve(sess.ID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.UserID != "usr-test1234" || got.Role != RoleOperator {
		t.Errorf("Resolve() = %+v, want created session", got)
	}
}

func TestSessionStore_UniqueIDsAndTokens(t *testing.T) {
	store := NewSessionStore(time.Hour)

	a, _ := store.Create(testUser(RoleViewer))
	b, _ := store.Create(testUser(RoleViewer))

	if a.ID == b.ID {
		t.Error("two sessions should never share an ID")
	}
	if a.CSRFToken == b.CSRFToken {
		t.Error("each session gets its own CSRF token")
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	store := NewSessionStore(30 * time.Minute)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess, _ := store.Create(testUser(RoleViewer))

	now = now.Add(31 * time.Minute)
	if _, err := store.Resolve(sess.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Resolve() after expiry = %v, want ErrUnauthenticated", err)
	}

	// Lazy expiry removed the entry.
	if store.Len() != 0 {
		t.Errorf("expired session should be swept on resolve, Len() = %d", store.Len())
	}
}

func TestSessionStore_Invalidate(t *testing.T) {
	store := NewSessionStore(time.Hour)

	sess, _ := store.Create(testUser(RoleViewer))
	store.Invalidate(sess.ID)

	if _, err := store.Resolve(sess.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Resolve() after invalidate = %v, want ErrUnauthenticated", err)
	}

	// Idempotent.
	store.Invalidate(sess.ID)
	store.Invalidate("never-existed")
}

func TestSessionStore_InvalidateUser(t *testing.T) {
	store := NewSessionStore(time.Hour)

	a, _ := store.Create(testUser(RoleOperator))
	b, _ := store.Create(testUser(RoleOperator))
	other, _ := store.Create(&User{ID: "usr-other", Username: "bartek", Role: RoleViewer})

	if n := store.InvalidateUser("usr-test1234"); n != 2 {
		t.Errorf("InvalidateUser() = %d, want 2", n)
	}
	if _, err := store.Resolve(a.ID); err == nil {
		t.Error("first session should be gone")
	}
	if _, err := store.Resolve(b.ID); err == nil {
		t.Error("second session should be gone")
	}
	if _, err := store.Resolve(other.ID); err != nil {
		t.Error("other user's session should survive")
	}
}

func TestSessionStore_RequireRole(t *testing.T) {
	store := NewSessionStore(time.Hour)
	sess, _ := store.Create(testUser(RoleOperator))

	tests := []struct {
		name    string
		id      string
		min     Role
		wantErr error
	}{
		{"sufficient rank", sess.ID, RoleViewer, nil},
		{"exact rank", sess.ID, RoleOperator, nil},
		{"insufficient rank", sess.ID, RoleAdmin, ErrForbidden},
		{"unknown session", "bogus", RoleViewer, ErrUnauthenticated},
		{"empty session", "", RoleViewer, ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.RequireRole(tt.id, tt.min)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RequireRole() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionStore_RoleIsSnapshot(t *testing.T) {
	store := NewSessionStore(time.Hour)

	user := testUser(RoleAdmin)
	sess, _ := store.Create(user)

	// Demote the account after login.
	user.Role = RoleViewer

	got, err := store.Resolve(sess.ID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Role != RoleAdmin {
		t.Errorf("session role = %q, want the admin snapshot from login time", got.Role)
	}
}
