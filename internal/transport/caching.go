package transport

import (
	"context"
	"fmt"
	"io"

	"repostack/internal/credentials"
	"repostack/internal/location"
)

// Cache stores immutable response snapshots keyed by normalized URI.
// Entries are written atomically: a failed fetch never leaves a partial
// entry behind. Eviction is the implementation's own policy.
type Cache interface {
	// Get returns the cached body and metadata for a key, if present.
	Get(uri string) (io.ReadCloser, Metadata, bool)

	// Put stores a snapshot and returns a reader over the stored bytes.
	Put(uri string, body io.Reader, meta Metadata) (io.ReadCloser, error)
}

// CachingTransport decorates a raw transport with a cache consult and
// credential injection. Cache hits never touch the network; misses resolve
// credentials, delegate, and store the result on success only. Concurrent
// fetches of the same URI are race-tolerant: last writer wins and entries
// are never mutated in place.
type CachingTransport struct {
	raw      RawTransport
	cache    Cache
	resolver *credentials.Resolver
}

var _ Transport = (*CachingTransport)(nil)

// NewCachingTransport wires the decorator chain for network access.
func NewCachingTransport(raw RawTransport, cache Cache, resolver *credentials.Resolver) *CachingTransport {
	return &CachingTransport{raw: raw, cache: cache, resolver: resolver}
}

// Fetch implements Transport.
func (t *CachingTransport) Fetch(ctx context.Context, uri string) (io.ReadCloser, Metadata, error) {
	key, err := location.Normalize(uri)
	if err != nil {
		return nil, Metadata{}, err
	}

	if body, meta, ok := t.cache.Get(key); ok {
		return body, meta, nil
	}

	creds, _ := t.resolver.Resolve(key)
	body, meta, err := t.raw.Fetch(ctx, key, creds)
	if err != nil {
		// Propagate unchanged; the cache stays as it was.
		return nil, Metadata{}, err
	}
	defer body.Close()

	cached, err := t.cache.Put(key, body, meta)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to cache %s: %w", key, err)
	}

	return cached, meta, nil
}

// Stat implements Transport. A cached entry answers the probe; otherwise
// the probe is delegated without populating the cache.
func (t *CachingTransport) Stat(ctx context.Context, uri string) (Metadata, error) {
	key, err := location.Normalize(uri)
	if err != nil {
		return Metadata{}, err
	}

	if body, meta, ok := t.cache.Get(key); ok {
		body.Close()
		return meta, nil
	}

	creds, _ := t.resolver.Resolve(key)
	return t.raw.Stat(ctx, key, creds)
}
