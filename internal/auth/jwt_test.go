package auth

import (
	"testing"
	"time"

	"autocare-crm/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "autocare",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 720 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := testManager(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	pair, err := m.IssuePair(now, "user-1", "manager")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "manager" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := testManager(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	pair, err := m.IssuePair(now, "user-1", "manager")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.Verify(pair.RefreshToken, TokenTypeAccess, now.Add(time.Minute)); err == nil {
		t.Fatalf("expected refresh token to fail access verification")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := testManager(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	pair, err := m.IssuePair(now, "user-1", "manager")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(16*time.Minute)); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestVerifyUsesSuppliedClock(t *testing.T) {
	m := testManager(t)
	// Issue far in the future so the wall clock alone would accept it.
	now := time.Now().UTC().Add(100 * 365 * 24 * time.Hour)

	pair, err := m.IssuePair(now, "user-1", "manager")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(16*time.Minute)); err == nil {
		t.Fatalf("expected expiry against the supplied clock, not the wall clock")
	}
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute)); err != nil {
		t.Fatalf("Verify within window: %v", err)
	}
}

func TestRefreshTokenCarriesNoRole(t *testing.T) {
	m := testManager(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	pair, err := m.IssuePair(now, "user-1", "manager")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	claims, err := m.Verify(pair.RefreshToken, TokenTypeRefresh, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify refresh: %v", err)
	}
	if claims.Role != "" {
		t.Fatalf("refresh token should not carry a role, got %q", claims.Role)
	}
}
