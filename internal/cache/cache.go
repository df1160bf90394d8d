// Package cache implements the filesystem cache manager the caching
// transport stores response snapshots in. Entries are content files with a
// JSON sidecar carrying the original URI and validation metadata, keyed by
// the sha256 of the normalized URI.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"repostack/internal/transport"
)

// entry is the sidecar document stored next to each cached body.
type entry struct {
	URI      string             `json:"uri"`
	Metadata transport.Metadata `json:"metadata"`
}

// FileCache is a content-addressed cache under a base directory.
type FileCache struct {
	dir string
}

var _ transport.Cache = (*FileCache)(nil)

// New creates a file cache rooted at dir.
func New(dir string) (*FileCache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// DefaultDir returns the per-user cache location, ~/.repostack/cache.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".repostack", "cache"), nil
}

func (c *FileCache) paths(uri string) (body, sidecar string) {
	h := sha256.Sum256([]byte(uri))
	key := hex.EncodeToString(h[:])
	return filepath.Join(c.dir, "data", key+".bin"), filepath.Join(c.dir, "data", key+".json")
}

// Get implements transport.Cache.
func (c *FileCache) Get(uri string) (io.ReadCloser, transport.Metadata, bool) {
	bodyPath, sidecarPath := c.paths(uri)

	raw, err := os.ReadFile(sidecarPath)
	if err != nil {
		return nil, transport.Metadata{}, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt sidecar: treat as a miss, the next Put repairs it.
		return nil, transport.Metadata{}, false
	}

	f, err := os.Open(bodyPath)
	if err != nil {
		return nil, transport.Metadata{}, false
	}

	return f, e.Metadata, true
}

// Put implements transport.Cache. The body is streamed to a temp file and
// renamed into place, so readers never observe a partial entry.
func (c *FileCache) Put(uri string, body io.Reader, meta transport.Metadata) (io.ReadCloser, error) {
	bodyPath, sidecarPath := c.paths(uri)

	tmp, err := os.CreateTemp(filepath.Dir(bodyPath), ".put-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	size, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write cache entry: %w", err)
	}

	meta.Size = size
	sidecar, err := json.Marshal(entry{URI: uri, Metadata: meta})
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	if err := os.Rename(tmp.Name(), bodyPath); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to store cache entry: %w", err)
	}
	if err := os.WriteFile(sidecarPath, sidecar, 0o644); err != nil {
		os.Remove(bodyPath)
		return nil, fmt.Errorf("failed to store cache metadata: %w", err)
	}

	f, err := os.Open(bodyPath)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove drops a single entry.
func (c *FileCache) Remove(uri string) error {
	bodyPath, sidecarPath := c.paths(uri)
	if err := os.Remove(sidecarPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(bodyPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clean removes every entry whose original URI matches the doublestar
// pattern. An empty pattern clears the whole cache. Returns the number of
// entries removed.
func (c *FileCache) Clean(pattern string) (int, error) {
	sidecars, err := filepath.Glob(filepath.Join(c.dir, "data", "*.json"))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sidecarPath := range sidecars {
		raw, err := os.ReadFile(sidecarPath)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}

		if pattern != "" {
			match, err := doublestar.Match(globTarget(pattern), globTarget(e.URI))
			if err != nil {
				return removed, fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			if !match {
				continue
			}
		}

		if err := c.Remove(e.URI); err != nil {
			return removed, err
		}
		removed++
	}

	return removed, nil
}

// globTarget strips the scheme separator so URI patterns can use ** across
// host and path the way file globs do.
func globTarget(uri string) string {
	return strings.Replace(uri, "://", "/", 1)
}
