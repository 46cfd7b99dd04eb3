package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"questboard/core"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password too short")
)

// MinPasswordLength is enforced by HashPassword.
const MinPasswordLength = 8

// Config controls token issuing and password hashing.
type Config struct {
	// Secret signs HS256 tokens. Empty generates a per-process key, so
	// tokens do not survive a restart.
	Secret     string
	Issuer     string
	TTL        time.Duration
	BcryptCost int
}

// Claims carried by access tokens. Subject holds the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a core.UserID.
func (c Claims) UserID() core.UserID { return core.UserID(c.Subject) }

// Auth hashes passwords and issues/verifies tokens.
type Auth struct {
	key    []byte
	issuer string
	ttl    time.Duration
	cost   int
	now    func() time.Time
	// Ephemeral is true when the key was generated at startup.
	Ephemeral bool
}

func New(cfg Config) (*Auth, error) {
	a := &Auth{
		key:    []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		cost:   cfg.BcryptCost,
		now:    time.Now,
	}
	if a.issuer == "" {
		a.issuer = "questboard"
	}
	if a.ttl <= 0 {
		a.ttl = 24 * time.Hour
	}
	if a.cost == 0 {
		a.cost = bcrypt.DefaultCost
	}
	if a.cost < bcrypt.MinCost || a.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", a.cost)
	}
	if len(a.key) == 0 {
		a.key = make([]byte, 32)
		if _, err := rand.Read(a.key); err != nil {
			return nil, err
		}
		a.Ephemeral = true
	}
	return a, nil
}

// HashPassword bcrypt-hashes pw.
func (a *Auth) HashPassword(pw string) (string, error) {
	if len(pw) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), a.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports ErrInvalidCredentials on mismatch.
func (a *Auth) CheckPassword(hash, pw string) error {
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Issue signs a token for u and returns it with its expiry.
func (a *Auth) Issue(u core.User) (string, time.Time, error) {
	now := a.now().UTC()
	exp := now.Add(a.ttl)
	claims := Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies tok and returns its claims.
func (a *Auth) Parse(tok string) (Claims, error) {
	if tok == "" {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	t, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) { return a.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !t.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest reads a Bearer header or, for websockets, ?token=.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// Authenticate resolves the user behind r.
func (a *Auth) Authenticate(r *http.Request) (core.UserID, error) {
	c, err := a.Parse(TokenFromRequest(r))
	if err != nil {
		return "", err
	}
	return c.UserID(), nil
}

type ctxKey struct{}

// WithClaims stores c on ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the claims set by Require.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}

// Require rejects requests without a valid token and stores the claims
// on the request context.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Parse(TokenFromRequest(r))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="questboard"`)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthorized","message":"missing or invalid token"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
