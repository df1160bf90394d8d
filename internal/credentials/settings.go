package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"repostack/internal/location"
)

// MapSettings is a SettingsProvider backed by in-memory maps, keyed by
// normalized URL and by logical id. Id lookups take precedence: some
// settings are configured per repository id rather than per URL.
type MapSettings struct {
	byURL map[string]Credentials
	byID  map[string]Credentials
}

// NewMapSettings creates an empty settings map.
func NewMapSettings() *MapSettings {
	return &MapSettings{
		byURL: make(map[string]Credentials),
		byID:  make(map[string]Credentials),
	}
}

// SetForURL saves credentials for a repository URL.
func (s *MapSettings) SetForURL(rawURL string, creds Credentials) error {
	normalized, err := location.Normalize(rawURL)
	if err != nil {
		return err
	}
	s.byURL[normalized] = creds
	return nil
}

// SetForID saves credentials for a logical repository id.
func (s *MapSettings) SetForID(id string, creds Credentials) {
	s.byID[id] = creds
}

// CredentialsFor implements SettingsProvider.
func (s *MapSettings) CredentialsFor(loc location.Location) (Credentials, bool) {
	if loc.ID != "" {
		if creds, ok := s.byID[loc.ID]; ok {
			return creds, true
		}
	}
	if creds, ok := s.byURL[loc.URL]; ok {
		return creds, true
	}
	return Credentials{}, false
}

// TokenExpiry extracts the expiry claim from a JWT bearer token without
// verifying its signature. Verification happens server-side; the client
// only wants to tell the user when a saved token has lapsed.
func TokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("not a JWT token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("token has no expiry claim")
	}
	return claims.ExpiresAt.Time, nil
}
