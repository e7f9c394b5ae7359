package token

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"onlinelibrary/pkg/domain"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider("test-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestProviderRequiresSecret(t *testing.T) {
	if _, err := NewProvider("  ", time.Minute, time.Hour); err == nil {
		t.Fatalf("expected constructor error for empty secret")
	}
}

func TestAccessTokenCarriesIdentityAndRoles(t *testing.T) {
	p := newTestProvider(t)
	tok, err := p.NewAccessToken("user-1", "reader@example.com", []domain.Authority{domain.RoleUser, domain.RoleAdmin})
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	claims, err := p.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "reader@example.com" || claims.UserID != "user-1" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "ROLE_USER" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestRefreshTokenOmitsRoles(t *testing.T) {
	p := newTestProvider(t)
	tok, err := p.NewRefreshToken("user-1", "reader@example.com")
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	claims, err := p.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(claims.Roles) != 0 {
		t.Fatalf("refresh token should not carry roles, got %v", claims.Roles)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	p := newTestProvider(t)
	now := time.Now().UTC()
	expired := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "reader@example.com",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	if p.Validate(signed) {
		t.Fatalf("expired token must fail validation")
	}

	fresh, err := p.NewAccessToken("user-1", "reader@example.com", nil)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	if !p.Validate(fresh) {
		t.Fatalf("unexpired token must pass validation")
	}
}

func TestValidateFailsClosedOnGarbage(t *testing.T) {
	p := newTestProvider(t)
	for _, tok := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if p.Validate(tok) {
			t.Fatalf("malformed token %q must fail validation", tok)
		}
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	p := newTestProvider(t)
	tok, err := p.NewAccessToken("user-1", "reader@example.com", nil)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]
	if p.Validate(tampered) {
		t.Fatalf("tampered token must fail validation")
	}

	other, err := NewProvider("another-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	foreign, err := other.NewAccessToken("user-1", "reader@example.com", nil)
	if err != nil {
		t.Fatalf("foreign token: %v", err)
	}
	if p.Validate(foreign) {
		t.Fatalf("token signed with a different secret must fail validation")
	}
}
