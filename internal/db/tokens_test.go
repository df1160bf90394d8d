package db

import "testing"

func TestHashPublishToken(t *testing.T) {
	hash := HashPublishToken("rsk_abc123", "pepper")

	if len(hash) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(hash))
	}
	if hash != HashPublishToken("rsk_abc123", "pepper") {
		t.Error("hashing is not deterministic")
	}
	if hash == HashPublishToken("rsk_abc123", "other-salt") {
		t.Error("different salts produced the same hash")
	}
	if hash == HashPublishToken("rsk_abc124", "pepper") {
		t.Error("different tokens produced the same hash")
	}
}
