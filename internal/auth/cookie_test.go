package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testCookieSecret = "test-secret-at-least-32-bytes-long!"

func testCodec() *CookieCodec {
	return NewCookieCodec("nixstrav_mng_session", testCookieSecret, time.Hour, false)
}

func TestCookieCodec_RoundTrip(t *testing.T) {
	codec := testCodec()

	value, err := codec.Encode("sess-abc123")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	id, err := codec.Decode(value)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if id != "sess-abc123" {
		t.Errorf("Decode() = %q, want %q", id, "sess-abc123")
	}
}

func TestCookieCodec_RejectsTampering(t *testing.T) {
	codec := testCodec()

	value, _ := codec.Encode("sess-abc123")

	// Flip a character in the payload.
	tampered := value[:len(value)/2] + "x" + value[len(value)/2+1:]
	if _, err := codec.Decode(tampered); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Decode(tampered) = %v, want ErrUnauthenticated", err)
	}

	if _, err := codec.Decode("not-a-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Decode(garbage) = %v, want ErrUnauthenticated", err)
	}
}

func TestCookieCodec_RejectsWrongSecret(t *testing.T) {
	value, _ := testCodec().Encode("sess-abc123")

	other := NewCookieCodec("nixstrav_mng_session", "a-completely-different-secret-value", time.Hour, false)
	if _, err := other.Decode(value); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Decode() with wrong secret = %v, want ErrUnauthenticated", err)
	}
}

func TestCookieCodec_CookieAttributes(t *testing.T) {
	codec := NewCookieCodec("nixstrav_mng_session", testCookieSecret, time.Hour, true)

	c := codec.NewCookie("value")
	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if !c.Secure {
		t.Error("Secure flag should follow configuration")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Error("session cookie should be SameSite=Lax")
	}
	if c.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", c.MaxAge)
	}

	clear := codec.ClearCookie()
	if clear.MaxAge != -1 || clear.Value != "" {
		t.Error("ClearCookie() should expire the cookie immediately")
	}
}

func TestCookieCodec_SessionIDFromRequest(t *testing.T) {
	codec := testCodec()
	value, _ := codec.Encode("sess-abc123")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/tags", nil)
	r.AddCookie(&http.Cookie{Name: "nixstrav_mng_session", Value: value})

	id, err := codec.SessionIDFromRequest(r)
	if err != nil {
		t.Fatalf("SessionIDFromRequest() error = %v", err)
	}
	if id != "sess-abc123" {
		t.Errorf("SessionIDFromRequest() = %q, want %q", id, "sess-abc123")
	}

	bare := httptest.NewRequest(http.MethodGet, "/api/v1/tags", nil)
	if _, err := codec.SessionIDFromRequest(bare); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("SessionIDFromRequest() without cookie = %v, want ErrUnauthenticated", err)
	}
}
