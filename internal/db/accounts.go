package db

import (
	"database/sql/driver"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role controls what a registry account may do. Readers pull descriptors
// and blobs, publishers additionally host repositories and upload
// artifacts, admins manage accounts.
type Role string

const (
	RoleReader    Role = "reader"
	RolePublisher Role = "publisher"
	RoleAdmin     Role = "admin"
)

// Allows reports whether the role covers an action: "read", "publish" or
// "admin". Higher roles include the lower actions.
func (r Role) Allows(action string) bool {
	switch action {
	case "read":
		return r == RoleReader || r == RolePublisher || r == RoleAdmin
	case "publish":
		return r == RolePublisher || r == RoleAdmin
	case "admin":
		return r == RoleAdmin
	default:
		return false
	}
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	return string(r), nil
}

// Scan implements sql.Scanner. NULL scans as the reader role.
func (r *Role) Scan(value interface{}) error {
	if value == nil {
		*r = RoleReader
		return nil
	}
	switch v := value.(type) {
	case string:
		*r = Role(v)
	case []byte:
		*r = Role(v)
	default:
		return errors.New("role must scan from a string")
	}
	return nil
}

// Account is a registry account row. Disabled accounts stay in the table
// so artifact provenance survives, but they cannot log in.
type Account struct {
	ID           int        `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         Role       `db:"role" json:"role"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	LastLogin    *time.Time `db:"last_login" json:"last_login"`
	Disabled     bool       `db:"disabled" json:"-"`
}

// Session is one login session. The stored hash is the SHA-256 of the JWT
// handed to the client, so a leaked table cannot replay sessions.
type Session struct {
	ID        int       `db:"id" json:"id"`
	AccountID int       `db:"account_id" json:"account_id"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	LastUsed  time.Time `db:"last_used" json:"last_used"`
	UserAgent *string   `db:"user_agent" json:"user_agent"`
	ClientIP  *string   `db:"client_ip" json:"client_ip"`
}

// ErrSessionExpired is returned when no live session matches a token hash.
var ErrSessionExpired = errors.New("session expired or unknown")

const accountColumns = `id, username, email, password_hash, role, created_at, updated_at, last_login, disabled`

// CreateAccount inserts a new account with a bcrypt password hash.
func (db *DB) CreateAccount(username, email, password string, role Role) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var acct Account
	err = db.Get(&acct, `
		INSERT INTO accounts (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		username, email, string(hash), role)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// AccountByUsername returns the active account with the given username.
func (db *DB) AccountByUsername(username string) (*Account, error) {
	var acct Account
	err := db.Get(&acct, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE username = $1 AND NOT disabled`, username)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// AccountByID returns the active account with the given id.
func (db *DB) AccountByID(id int) (*Account, error) {
	var acct Account
	err := db.Get(&acct, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1 AND NOT disabled`, id)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func (db *DB) CheckPassword(acct *Account, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) == nil
}

// CreateSession records a new login session for the account.
func (db *DB) CreateSession(accountID int, tokenHash string, expiresAt time.Time, userAgent, clientIP *string) (*Session, error) {
	var sess Session
	err := db.Get(&sess, `
		INSERT INTO sessions (account_id, token_hash, expires_at, user_agent, client_ip)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, account_id, token_hash, expires_at, created_at, last_used, user_agent, client_ip`,
		accountID, tokenHash, expiresAt, userAgent, clientIP)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// SessionAccount resolves a session token hash to its live session and the
// owning account. Expired sessions and disabled accounts both yield
// ErrSessionExpired.
func (db *DB) SessionAccount(tokenHash string) (*Account, *Session, error) {
	var sess Session
	err := db.Get(&sess, `
		SELECT id, account_id, token_hash, expires_at, created_at, last_used, user_agent, client_ip
		FROM sessions
		WHERE token_hash = $1 AND expires_at > now()`, tokenHash)
	if err != nil {
		return nil, nil, ErrSessionExpired
	}

	acct, err := db.AccountByID(sess.AccountID)
	if err != nil {
		return nil, nil, ErrSessionExpired
	}
	return acct, &sess, nil
}

// TouchSession bumps the session's last_used timestamp.
func (db *DB) TouchSession(sessionID int) error {
	_, err := db.Exec(`UPDATE sessions SET last_used = now() WHERE id = $1`, sessionID)
	return err
}

// RecordLogin stamps the account's last successful login.
func (db *DB) RecordLogin(accountID int) error {
	_, err := db.Exec(`UPDATE accounts SET last_login = now() WHERE id = $1`, accountID)
	return err
}

// SetPassword replaces the account's password hash.
func (db *DB) SetPassword(accountID int, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = db.Exec(`UPDATE accounts SET password_hash = $1, updated_at = now() WHERE id = $2`,
		string(hash), accountID)
	return err
}

// DeleteSession removes a single session.
func (db *DB) DeleteSession(sessionID int) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE id = $1`, sessionID)
	return err
}

// DeleteOtherSessions removes every session of the account except keepID.
// Pass keepID 0 to remove them all.
func (db *DB) DeleteOtherSessions(accountID, keepID int) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE account_id = $1 AND id <> $2`, accountID, keepID)
	return err
}

// DisableAccount marks the account disabled and revokes its sessions and
// publish tokens in one transaction.
func (db *DB) DisableAccount(accountID int) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE accounts SET disabled = true, updated_at = now() WHERE id = $1`, accountID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM publish_tokens WHERE account_id = $1`, accountID); err != nil {
		return err
	}
	return tx.Commit()
}

// PruneSessions drops sessions past their expiry.
func (db *DB) PruneSessions() error {
	_, err := db.Exec(`DELETE FROM sessions WHERE expires_at <= now()`)
	return err
}

// ListAccounts pages through active accounts, newest first.
func (db *DB) ListAccounts(limit, offset int) ([]Account, error) {
	var accts []Account
	err := db.Select(&accts, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE NOT disabled
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	return accts, err
}
