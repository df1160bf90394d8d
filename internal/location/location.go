package location

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Location identifies a configured remote repository: a normalized absolute
// URL plus an optional logical id. Two locations are equal when their
// normalized URLs are equal.
type Location struct {
	URL string
	ID  string
}

// New builds a Location with a normalized URL.
func New(rawURL, id string) (Location, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return Location{}, err
	}
	return Location{URL: normalized, ID: id}, nil
}

// Normalize converts a URL to the canonical form used for prefix matching
// and cache keys: scheme and host lowercased, dot segments resolved,
// fragment dropped. Trailing slashes and path case are preserved, so
// configured locations match exactly as written. Query strings are kept:
// URIs that differ only in query (a version-pinned descriptor, a signed
// download link) name distinct resources and must not share a cache entry.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %q: %w", rawURL, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("repository URL must be absolute: %q", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path != "" {
		trailing := strings.HasSuffix(u.Path, "/")
		u.Path = resolveDotSegments(u.Path)
		if trailing && !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
	}

	return u.String(), nil
}

// resolveDotSegments removes "." and ".." segments from a URL path.
func resolveDotSegments(path string) string {
	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case ".":
			// skip
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

// IDManager records URL-to-id mappings observed while repositories are
// loaded, and merges them with the statically configured locations on
// demand. New mappings may be recorded at any point during a build, so
// KnownLocations is evaluated fresh on every call and never cached by
// callers.
type IDManager struct {
	mu     sync.RWMutex
	static []Location
	known  map[string]Location
}

// NewIDManager creates an IDManager seeded with the build-configured
// locations.
func NewIDManager(static []Location) *IDManager {
	return &IDManager{
		static: append([]Location(nil), static...),
		known:  make(map[string]Location),
	}
}

// Record remembers the id for a repository URL. Recording an empty id is a
// no-op: anonymous loads contribute nothing to later lookups.
func (m *IDManager) Record(rawURL, id string) error {
	if id == "" {
		return nil
	}

	loc, err := New(rawURL, id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.known[loc.URL] = loc
	return nil
}

// IDFor returns the recorded or configured id for a URL, if any.
func (m *IDManager) IDFor(rawURL string) (string, bool) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if loc, ok := m.known[normalized]; ok && loc.ID != "" {
		return loc.ID, true
	}
	for _, loc := range m.static {
		if loc.URL == normalized && loc.ID != "" {
			return loc.ID, true
		}
	}
	return "", false
}

// KnownLocations returns the union of the configured locations and every
// mapping recorded so far. The result is a fresh copy; duplicates across
// the two sources are permitted and harmless.
func (m *IDManager) KnownLocations() []Location {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Location, 0, len(m.static)+len(m.known))
	out = append(out, m.static...)
	for _, loc := range m.known {
		out = append(out, loc)
	}
	return out
}
