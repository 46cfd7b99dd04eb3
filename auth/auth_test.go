package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"questboard/core"
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	a, err := New(Config{Secret: "0123456789abcdef0123456789abcdef", BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestPasswords(t *testing.T) {
	a := newTestAuth(t)
	if _, err := a.HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("want weak password, got %v", err)
	}
	hash, err := a.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := a.CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want invalid credentials, got %v", err)
	}
}

func TestIssueAndParse(t *testing.T) {
	a := newTestAuth(t)
	tok, exp, err := a.Issue(core.User{ID: "u1", Username: "ada"})
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < 23*time.Hour {
		t.Fatalf("unexpected expiry %v", exp)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if c.UserID() != "u1" || c.Username != "ada" {
		t.Fatalf("unexpected claims %+v", c)
	}
}

func TestParseRejects(t *testing.T) {
	a := newTestAuth(t)
	other, _ := New(Config{Secret: "ffffffffffffffffffffffffffffffff"})
	foreign, _, _ := other.Issue(core.User{ID: "u1"})
	if _, err := a.Parse(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("token signed with another key accepted")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "iss": "questboard"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := a.Parse(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("alg=none accepted")
	}

	a.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, _, _ := a.Issue(core.User{ID: "u1"})
	a.now = time.Now
	if _, err := a.Parse(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatal("expired token accepted")
	}
}

func TestEphemeralKey(t *testing.T) {
	a, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Ephemeral {
		t.Fatal("expected generated key")
	}
}

func TestRequire(t *testing.T) {
	a := newTestAuth(t)
	var seen core.UserID
	h := a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := FromContext(r.Context())
		seen = c.UserID()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	tok, _, _ := a.Issue(core.User{ID: "u9", Username: "zoe"})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "u9" {
		t.Fatalf("expected pass-through for u9, got %d %q", rec.Code, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws?token="+tok, nil)
	if id, err := a.Authenticate(req); err != nil || id != "u9" {
		t.Fatalf("query token: %q %v", id, err)
	}
}
