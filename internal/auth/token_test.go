package auth_test

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/dukanlabs/checkout-api/internal/auth"
)

func signToken(t *testing.T, secret, subject, tier, issuer string, expiresIn time.Duration) string {
	t.Helper()
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(expiresIn))
	if issuer != "" {
		builder = builder.Issuer(issuer)
	}
	if tier != "" {
		builder = builder.Claim("tier", tier)
	}
	token, err := builder.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, []byte(secret)))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

func TestParseIdentity(t *testing.T) {
	v := auth.Verifier{Secret: "secret"}
	raw := signToken(t, "secret", "user-1", "ENTREPRENEUR", "", time.Hour)

	identity, err := v.ParseIdentity(raw)
	if err != nil {
		t.Fatalf("parse identity: %v", err)
	}
	if identity.UserID != "user-1" {
		t.Fatalf("user id = %q, want user-1", identity.UserID)
	}
	if identity.Tier != "ENTREPRENEUR" {
		t.Fatalf("tier = %q, want ENTREPRENEUR", identity.Tier)
	}
}

func TestParseIdentityWithoutTier(t *testing.T) {
	v := auth.Verifier{Secret: "secret"}
	raw := signToken(t, "secret", "user-1", "", "", time.Hour)

	identity, err := v.ParseIdentity(raw)
	if err != nil {
		t.Fatalf("parse identity: %v", err)
	}
	if identity.Tier != "" {
		t.Fatalf("tier = %q, want empty", identity.Tier)
	}
}

func TestParseIdentityRejectsWrongSecret(t *testing.T) {
	v := auth.Verifier{Secret: "secret"}
	raw := signToken(t, "other-secret", "user-1", "", "", time.Hour)
	if _, err := v.ParseIdentity(raw); err == nil {
		t.Fatal("expected signature verification to fail")
	}
}

func TestParseIdentityRejectsExpiredToken(t *testing.T) {
	v := auth.Verifier{Secret: "secret"}
	raw := signToken(t, "secret", "user-1", "", "", -time.Minute)
	if _, err := v.ParseIdentity(raw); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestParseIdentityEnforcesIssuer(t *testing.T) {
	v := auth.Verifier{Secret: "secret", Issuer: "identity-svc"}
	raw := signToken(t, "secret", "user-1", "", "someone-else", time.Hour)
	if _, err := v.ParseIdentity(raw); err == nil {
		t.Fatal("expected issuer mismatch to fail validation")
	}
	raw = signToken(t, "secret", "user-1", "", "identity-svc", time.Hour)
	if _, err := v.ParseIdentity(raw); err != nil {
		t.Fatalf("matching issuer rejected: %v", err)
	}
}
