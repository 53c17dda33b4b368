package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeClock はテストから時刻を進められる時計。
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	issuer := NewTokenIssuer([]byte(testSecret), clock.Now)

	token, expiresAt, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Equal(clock.t.Add(time.Hour)) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, clock.t.Add(time.Hour))
	}

	username, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if username != "alice" {
		t.Errorf("username = %q, want %q", username, "alice")
	}
}

func TestTokenIssuer_ExpiryBoundary(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issuedAt}
	issuer := NewTokenIssuer([]byte(testSecret), clock.Now)

	token, _, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.t = issuedAt.Add(59 * time.Minute)
	if _, err := issuer.Verify(token); err != nil {
		t.Errorf("token should be valid at T+59m, got %v", err)
	}

	clock.t = issuedAt.Add(61 * time.Minute)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token should be invalid at T+61m, got %v", err)
	}
}

func TestTokenIssuer_TamperedSignature(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	issuer := NewTokenIssuer([]byte(testSecret), clock.Now)

	token, _, err := issuer.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC) }
	token, _, err := NewTokenIssuer([]byte(testSecret), now).Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := NewTokenIssuer([]byte("another-secret-another-secret-xx"), now)
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenIssuer_RejectsMalformedAndForeignTokens(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer([]byte(testSecret), func() time.Time { return now })

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer, Subject: "admin"},
	}).SignedString([]byte(testSecret))

	wrongIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"alg none":     noneToken,
		"no expiry":    noExpiry,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
	}
	for name, tok := range tests {
		if _, err := issuer.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestTokenIssuer_IssueRequiresUsername(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte(testSecret), nil)
	if _, _, err := issuer.Issue(""); err == nil {
		t.Fatal("expected error for empty username")
	}
}
