// Package auth issues and verifies the signed session tokens the registry
// hands out at login.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"repostack/internal/db"
)

// SessionTTL is how long a login session stays valid.
const SessionTTL = 24 * time.Hour

// Claims is the payload of a session token. The role is embedded so
// middleware can gate routes without a second lookup, but the session row
// stays authoritative: a revoked session fails even with a valid token.
type Claims struct {
	AccountID int     `json:"account_id"`
	Username  string  `json:"username"`
	Role      db.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with an HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer from the configured secret.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a session token for the account. It returns the token, the
// hash to store on the session row, and the expiry.
func (i *Issuer) Issue(acct *db.Account) (token, hash string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(i.ttl)

	claims := Claims{
		AccountID: acct.ID,
		Username:  acct.Username,
		Role:      acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", acct.ID),
			Issuer:    "repostack-registry",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, Hash(token), expiresAt, nil
}

// Verify checks the signature and expiry and returns the claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

// Hash is the digest of a session token as stored on the session row.
// Unsalted: session tokens are already unforgeable, the hash only keeps
// raw tokens out of the database.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
