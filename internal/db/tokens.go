package db

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PublishToken is a long-lived credential for CI publishing. It carries
// publisher scope only: token auth never satisfies admin routes. Only the
// salted hash is stored.
type PublishToken struct {
	ID        int        `db:"id" json:"id"`
	AccountID *int       `db:"account_id" json:"account_id"`
	TokenHash string     `db:"token_hash" json:"-"`
	Label     *string    `db:"label" json:"label"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	LastUsed  *time.Time `db:"last_used" json:"last_used"`
}

// CreatePublishToken stores a new publish token hash.
func (db *DB) CreatePublishToken(accountID *int, tokenHash string, label *string) (*PublishToken, error) {
	var tok PublishToken
	err := db.Get(&tok, `
		INSERT INTO publish_tokens (account_id, token_hash, label)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, token_hash, label, created_at, last_used`,
		accountID, tokenHash, label)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// PublishTokenByHash looks up a publish token by its salted hash.
func (db *DB) PublishTokenByHash(tokenHash string) (*PublishToken, error) {
	var tok PublishToken
	err := db.Get(&tok, `
		SELECT id, account_id, token_hash, label, created_at, last_used
		FROM publish_tokens
		WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// TouchPublishToken stamps the token's last use.
func (db *DB) TouchPublishToken(tokenID int) error {
	_, err := db.Exec(`UPDATE publish_tokens SET last_used = now() WHERE id = $1`, tokenID)
	return err
}

// RevokePublishToken deletes a publish token.
func (db *DB) RevokePublishToken(tokenID int) error {
	_, err := db.Exec(`DELETE FROM publish_tokens WHERE id = $1`, tokenID)
	return err
}

// HashPublishToken derives the stored hash for a raw token. The salt is
// server-side config, so a dumped table alone is not enough to mint a
// working Authorization header.
func HashPublishToken(raw, salt string) string {
	sum := sha256.Sum256([]byte(salt + raw))
	return hex.EncodeToString(sum[:])
}
