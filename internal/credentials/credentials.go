package credentials

import (
	"sort"

	"repostack/internal/location"
)

// Credentials holds the secret material for one repository location. Either
// Username/Password or Token is set; a zero value means anonymous access.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// IsZero reports whether no credential material is present.
func (c Credentials) IsZero() bool {
	return c.Username == "" && c.Password == "" && c.Token == ""
}

// SettingsProvider looks up saved credentials for a repository location.
// Settings may be keyed by URL or by logical id, which is why lookups take
// the whole location.
type SettingsProvider interface {
	CredentialsFor(loc location.Location) (Credentials, bool)
}

// Resolver maps a request URI to the credentials of the best-matching
// configured repository location.
type Resolver struct {
	settings SettingsProvider
	ids      *location.IDManager
}

// NewResolver creates a resolver over the given id manager. A nil settings
// provider is the default anonymous mode: every resolution returns false
// without consulting any location.
func NewResolver(settings SettingsProvider, ids *location.IDManager) *Resolver {
	return &Resolver{settings: settings, ids: ids}
}

// Resolve finds credentials for a request URI by longest-prefix match over
// the known repository locations. Among locations whose normalized URL is a
// prefix of the request, the longest wins; equal-length ties break by URL
// order so repeated calls stay deterministic. Absence of credentials is not
// an error.
func (r *Resolver) Resolve(requestURI string) (Credentials, bool) {
	if r.settings == nil {
		return Credentials{}, false
	}

	normalized, err := location.Normalize(requestURI)
	if err != nil {
		return Credentials{}, false
	}

	candidates := r.ids.KnownLocations()
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].URL) != len(candidates[j].URL) {
			return len(candidates[i].URL) > len(candidates[j].URL)
		}
		return candidates[i].URL < candidates[j].URL
	})

	for _, loc := range candidates {
		if !hasPrefix(normalized, loc.URL) {
			continue
		}
		if creds, ok := r.settings.CredentialsFor(loc); ok && !creds.IsZero() {
			return creds, true
		}
	}

	return Credentials{}, false
}

func hasPrefix(uri, prefix string) bool {
	return len(uri) >= len(prefix) && uri[:len(prefix)] == prefix
}
