package auth

import (
	"testing"
	"time"

	"repostack/internal/db"
)

func testAccount() *db.Account {
	return &db.Account{
		ID:       7,
		Username: "carol",
		Role:     db.RolePublisher,
	}
}

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	token, hash, expiresAt, err := issuer.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if hash != Hash(token) {
		t.Error("returned hash does not match Hash(token)")
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expiry %v not ~1h out", remaining)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.AccountID != 7 {
		t.Errorf("AccountID = %d, want 7", claims.AccountID)
	}
	if claims.Username != "carol" {
		t.Errorf("Username = %q, want %q", claims.Username, "carol")
	}
	if claims.Role != db.RolePublisher {
		t.Errorf("Role = %q, want %q", claims.Role, db.RolePublisher)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, _, err := NewIssuer("secret-a", time.Hour).Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := NewIssuer("secret-b", time.Hour).Verify(token); err == nil {
		t.Error("token signed with a different secret verified")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("test-secret", -time.Minute)

	token, _, _, err := issuer.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.Verify(token); err == nil {
		t.Error("expired token verified")
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	token, _, _, err := issuer.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := issuer.Verify(tampered); err == nil {
		t.Error("tampered token verified")
	}
}

func TestHash(t *testing.T) {
	if Hash("abc") != Hash("abc") {
		t.Error("hashing is not deterministic")
	}
	if Hash("abc") == Hash("abd") {
		t.Error("different tokens produced the same hash")
	}
	if len(Hash("abc")) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(Hash("abc")))
	}
}
