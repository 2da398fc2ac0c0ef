package session

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testSecret = "s3cret"

func signToken(t *testing.T, alg jwa.SignatureAlgorithm, key any, mutate func(jwt.Token)) string {
	t.Helper()
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer("toko").
		Audience([]string{"storefront"}).
		Subject("user-1").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Hour)).
		Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	if mutate != nil {
		mutate(tok)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(alg, key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret, TokenValidator{Issuer: "toko", Audience: "storefront", ClockSkew: time.Second})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestVerifierParseClaims(t *testing.T) {
	token := signToken(t, jwa.HS256, []byte(testSecret), func(tok jwt.Token) {
		_ = tok.Set("roles", []string{"Admin"})
		_ = tok.Set("store_id", "store-9")
	})
	s, err := newTestVerifier(t).Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.UserID != "user-1" || s.StoreID != "store-9" || s.Token != token {
		t.Fatalf("unexpected session %+v", s)
	}
	if !s.HasRole(RoleAdmin) || s.HasRole(RoleSuperAdmin) {
		t.Fatalf("unexpected roles %v", s.Roles)
	}
}

func TestVerifierDefaultsToCustomer(t *testing.T) {
	s, err := newTestVerifier(t).Parse(signToken(t, jwa.HS256, []byte(testSecret), nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !s.HasRole(RoleCustomer) || s.StoreScope() != nil {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestVerifierRejects(t *testing.T) {
	v := newTestVerifier(t)
	cases := map[string]string{
		"wrong secret": signToken(t, jwa.HS256, []byte("other"), nil),
		"wrong alg":    signToken(t, jwa.HS512, []byte(testSecret), nil),
		"wrong issuer": signToken(t, jwa.HS256, []byte(testSecret), func(tok jwt.Token) { _ = tok.Set(jwt.IssuerKey, "evil") }),
		"expired": signToken(t, jwa.HS256, []byte(testSecret), func(tok jwt.Token) {
			_ = tok.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour))
		}),
		"garbage": "not-a-token",
		"empty":   "",
	}
	for name, token := range cases {
		if _, err := v.Parse(token); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestTokenValidatorNotBefore(t *testing.T) {
	now := time.Now()
	token, _ := jwt.NewBuilder().
		Issuer("issuer").
		Subject("sub").
		NotBefore(now.Add(5 * time.Minute)).
		Expiration(now.Add(10 * time.Minute)).
		Build()
	validator := TokenValidator{Issuer: "issuer", Algorithm: jwa.HS256, ClockSkew: time.Second}
	if err := validator.Validate(token, jwa.HS256, now); err == nil {
		t.Fatal("expected not-before validation error")
	}
	if err := validator.Validate(token, jwa.RS256, now.Add(6*time.Minute)); err == nil {
		t.Fatal("expected algorithm mismatch error")
	}
}
