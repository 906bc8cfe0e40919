package auth

import (
	"context"
	"testing"
	"time"

	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestManager_IssueAndVerify(t *testing.T) {
	m := NewManager(testSecret, time.Hour, NewMemoryRevocationStore())

	token, err := m.Issue("665f1f77bcf86cd799439011", model.RoleGuide)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	p, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if p.UserID != "665f1f77bcf86cd799439011" {
		t.Errorf("expected subject to round-trip, got %s", p.UserID)
	}
	if p.Role != model.RoleGuide {
		t.Errorf("expected role GUIDE, got %s", p.Role)
	}
	if p.TokenID == "" {
		t.Error("expected a token id claim")
	}
}

func TestManager_VerifyRejectsGarbage(t *testing.T) {
	m := NewManager(testSecret, time.Hour, nil)

	_, err := m.Verify(context.Background(), "not-a-token")
	if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestManager_VerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewManager(testSecret, time.Hour, nil)
	verifier := NewManager("ffffffffffffffffffffffffffffffff", time.Hour, nil)

	token, err := issuer.Issue("665f1f77bcf86cd799439011", model.RoleTourist)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := verifier.Verify(context.Background(), token); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("expected UNAUTHORIZED for wrong secret, got %v", err)
	}
}

func TestManager_VerifyRejectsExpired(t *testing.T) {
	m := NewManager(testSecret, -time.Minute, nil)

	token, err := m.Issue("665f1f77bcf86cd799439011", model.RoleTourist)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if _, err := m.Verify(context.Background(), token); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("expected UNAUTHORIZED for expired token, got %v", err)
	}
}

func TestManager_RevokeInvalidatesSession(t *testing.T) {
	m := NewManager(testSecret, time.Hour, NewMemoryRevocationStore())
	ctx := context.Background()

	token, err := m.Issue("665f1f77bcf86cd799439011", model.RoleTourist)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	p, err := m.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}

	if err := m.Revoke(ctx, p); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}

	if _, err := m.Verify(ctx, token); !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
		t.Errorf("expected UNAUTHORIZED after logout, got %v", err)
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if PrincipalFrom(ctx) != nil {
		t.Error("expected nil principal on fresh context")
	}

	p := &Principal{UserID: "u1", Role: model.RoleAdmin}
	ctx = WithPrincipal(ctx, p)
	if got := PrincipalFrom(ctx); got != p {
		t.Errorf("expected principal to round-trip, got %v", got)
	}
}
