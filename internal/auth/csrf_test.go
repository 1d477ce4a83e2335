package auth

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestCSRFToken_StablePerSession(t *testing.T) {
	store := NewSessionStore(time.Hour)
	sess, _ := store.Create(testUser(RoleViewer))

	first, err := store.CSRFToken(sess.ID)
	if err != nil {
		t.Fatalf("CSRFToken() error = %v", err)
	}
	second, err := store.CSRFToken(sess.ID)
	if err != nil {
		t.Fatalf("CSRFToken() error = %v", err)
	}
	if first != second {
		t.Error("token should stay stable for the session's lifetime")
	}
	if first != sess.CSRFToken {
		t.Error("token should match the one minted at session creation")
	}
}

func TestVerifyCSRF_SafeMethodsBypass(t *testing.T) {
	store := NewSessionStore(time.Hour)
	sess, _ := store.Create(testUser(RoleViewer))

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		if err := store.VerifyCSRF(sess.ID, "", method); err != nil {
			t.Errorf("VerifyCSRF(%s) with no token = %v, want nil", method, err)
		}
	}
}

func TestVerifyCSRF_MutatingMethods(t *testing.T) {
	store := NewSessionStore(time.Hour)
	sess, _ := store.Create(testUser(RoleOperator))

	tests := []struct {
		name     string
		supplied string
		method   string
		wantErr  error
	}{
		{"valid token POST", sess.CSRFToken, http.MethodPost, nil},
		{"valid token DELETE", sess.CSRFToken, http.MethodDelete, nil},
		{"missing token", "", http.MethodPost, ErrForgeryRejected},
		{"wrong token", "attacker-supplied", http.MethodPut, ErrForgeryRejected},
		{"truncated token", sess.CSRFToken[:10], http.MethodPatch, ErrForgeryRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.VerifyCSRF(sess.ID, tt.supplied, tt.method)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("VerifyCSRF() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerifyCSRF_NoSession(t *testing.T) {
	store := NewSessionStore(time.Hour)

	err := store.VerifyCSRF("bogus", "token", http.MethodPost)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("VerifyCSRF() without session = %v, want ErrUnauthenticated", err)
	}
}
