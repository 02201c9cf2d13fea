package authn

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

const testSigningKey = "test-signing-key"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSigningKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                  "user-1",
		"aud":                  "infraweave",
		"iss":                  "https://issuer.example.com",
		"exp":                  time.Now().Add(time.Hour).Unix(),
		"infraweave-projects":  []any{"p1", "p2"},
	}
}

func TestAuthenticateValidHMACToken(t *testing.T) {
	a, err := New(Options{Issuer: "https://issuer.example.com", Audience: "infraweave", SigningKey: testSigningKey})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	identity, err := a.Authenticate(context.Background(), signToken(t, baseClaims()))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Subject != "user-1" || !identity.HasProject("p1") {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	a, _ := New(Options{Issuer: "https://issuer.example.com", Audience: "infraweave", SigningKey: testSigningKey})
	claims := baseClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	_, err := a.Authenticate(context.Background(), signToken(t, claims))
	if apperrors.KindOf(err) != apperrors.InvalidToken {
		t.Fatalf("expected InvalidToken, got %v", err)
	}
}

func TestAuthenticateRejectsMissingProjectClaim(t *testing.T) {
	a, _ := New(Options{Issuer: "https://issuer.example.com", Audience: "infraweave", SigningKey: testSigningKey})
	claims := baseClaims()
	delete(claims, "infraweave-projects")

	_, err := a.Authenticate(context.Background(), signToken(t, claims))
	if apperrors.KindOf(err) != apperrors.Forbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	a, _ := New(Options{Issuer: "https://issuer.example.com", Audience: "infraweave", SigningKey: testSigningKey})
	_, err := a.Authenticate(context.Background(), "")
	if apperrors.KindOf(err) != apperrors.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestAuthenticateInsecureModeBypassesValidation(t *testing.T) {
	a, err := New(Options{Insecure: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	identity, err := a.Authenticate(context.Background(), "")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if identity.Subject == "" {
		t.Fatal("expected a non-empty dev identity subject")
	}
}

func TestNewRejectsNoCredentialSource(t *testing.T) {
	_, err := New(Options{Issuer: "https://issuer.example.com"})
	if apperrors.KindOf(err) != apperrors.Malformed {
		t.Fatalf("expected Malformed, got %v", err)
	}
}
