package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func newTestConfig(t *testing.T) (*Config, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewConfig(&key.PublicKey, key), key
}

func sameApps(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSignVerify_RoundTrip(t *testing.T) {
	cfg, _ := newTestConfig(t)

	apps := []uuid.UUID{uuid.New(), uuid.New()}
	cases := []struct {
		name     string
		accessor Accessor
	}{
		{"system", System()},
		{"member", Member(42, apps, RoleStaff)},
		{"member without apps", Member(7, nil, RoleManagement)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, claim, err := cfg.Sign(tc.accessor, time.Hour)
			if err != nil {
				t.Fatalf("Sign returned error: %v", err)
			}
			if remaining := time.Until(claim.ExpiresAt); remaining < 59*time.Minute || remaining > time.Hour {
				t.Fatalf("unexpected claim expiry: %v from now", remaining)
			}

			got, err := cfg.Verify(token)
			if err != nil {
				t.Fatalf("Verify returned error: %v", err)
			}
			if got.Kind != tc.accessor.Kind || got.UserID != tc.accessor.UserID || got.Role != tc.accessor.Role {
				t.Fatalf("accessor mismatch: got %+v want %+v", got, tc.accessor)
			}
			if !sameApps(got.AuthorizedApps, tc.accessor.AuthorizedApps) {
				t.Fatalf("authorized apps mismatch: got %v want %v", got.AuthorizedApps, tc.accessor.AuthorizedApps)
			}
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	cfg, key := newTestConfig(t)

	// Built directly so the expiry can sit in the past, beyond the skew leeway.
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, tokenClaims{
		Accessor: System(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-5 * time.Minute)),
		},
	})
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := cfg.Verify(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerify_WithinSkewLeeway(t *testing.T) {
	cfg, key := newTestConfig(t)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, tokenClaims{
		Accessor: System(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second)),
		},
	})
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := cfg.Verify(signed); err != nil {
		t.Fatalf("token just past expiry should verify within leeway, got %v", err)
	}
}

func TestVerify_BadSignature(t *testing.T) {
	signer, _ := newTestConfig(t)
	other, _ := newTestConfig(t)

	token, _, err := signer.Sign(System(), time.Hour)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}

	if _, err := other.Verify(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	cfg, _ := newTestConfig(t)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := cfg.Verify(token); !errors.Is(err, ErrMalformed) {
			t.Fatalf("token %q: expected ErrMalformed, got %v", token, err)
		}
	}
}

func TestSign_VerifyOnlyConfig(t *testing.T) {
	full, _ := newTestConfig(t)
	verifyOnly := NewConfig(full.public, nil)

	if _, _, err := verifyOnly.Sign(System(), time.Hour); !errors.Is(err, ErrNoPrivateKey) {
		t.Fatalf("expected ErrNoPrivateKey, got %v", err)
	}
}

func TestMember_CanonicalisesApps(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	m1 := Member(1, []uuid.UUID{a, b}, RoleStaff)
	m2 := Member(1, []uuid.UUID{b, a}, RoleStaff)
	if !sameApps(m1.AuthorizedApps, m2.AuthorizedApps) {
		t.Fatalf("same app set should canonicalise identically")
	}

	if !m1.HasApp(a) || !m1.HasApp(b) {
		t.Fatalf("HasApp should find both apps")
	}
	if m1.HasApp(uuid.New()) {
		t.Fatalf("HasApp should not find unknown app")
	}
}
