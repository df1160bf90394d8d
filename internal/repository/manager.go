package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"repostack/internal/location"
	"repostack/internal/transport"
)

// AtomicLoadingEnv is the process-wide switch for composite loading
// semantics, read on every composite load. The agent sets it to "true"
// once at construction unless external configuration already set it.
const AtomicLoadingEnv = "REPOSTACK_ATOMIC_COMPOSITE_LOADING"

// Manager is the repository manager contract: load, membership and removal
// by URI. The id is the configured logical name for the repository and may
// be empty.
type Manager interface {
	LoadRepository(ctx context.Context, uri, id string) (*Repository, error)
	Contains(uri string) bool
	RemoveRepository(uri string)
}

// baseManager loads descriptor documents through the transport service and
// keeps loaded repositories in memory. The metadata and artifact variants
// differ only in the descriptor they fetch.
type baseManager struct {
	descriptorName string
	transport      transport.Transport

	mu     sync.RWMutex
	loaded map[string]*Repository
}

// NewMetadataManager creates the base metadata repository manager.
func NewMetadataManager(t transport.Transport) Manager {
	return &baseManager{
		descriptorName: MetadataDescriptorName,
		transport:      t,
		loaded:         make(map[string]*Repository),
	}
}

// NewArtifactManager creates the base artifact repository manager.
func NewArtifactManager(t transport.Transport) Manager {
	return &baseManager{
		descriptorName: ArtifactDescriptorName,
		transport:      t,
		loaded:         make(map[string]*Repository),
	}
}

func (m *baseManager) LoadRepository(ctx context.Context, uri, id string) (*Repository, error) {
	key, err := location.Normalize(uri)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	repo, ok := m.loaded[key]
	m.mu.RUnlock()
	if ok {
		return repo, nil
	}

	repo, err = m.load(ctx, key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.loaded[key] = repo
	m.mu.Unlock()
	return repo, nil
}

func (m *baseManager) load(ctx context.Context, uri string) (*Repository, error) {
	descURI, err := resourceURI(uri, m.descriptorName)
	if err != nil {
		return nil, err
	}

	body, _, err := m.transport.Fetch(ctx, descURI)
	if err != nil {
		return nil, fmt.Errorf("failed to load repository %s: %w", uri, err)
	}
	defer body.Close()

	desc, err := ParseDescriptor(body)
	if err != nil {
		return nil, fmt.Errorf("failed to load repository %s: %w", uri, err)
	}

	repo := &Repository{URI: uri, Descriptor: desc}
	if desc.Composite {
		if err := m.loadChildren(ctx, repo); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

// loadChildren resolves a composite's children. Under atomic loading any
// child failure fails the whole composite; with the per-repository opt-out
// the lenient historical behavior keeps the surviving children.
func (m *baseManager) loadChildren(ctx context.Context, repo *Repository) error {
	atomic := atomicLoadingDefault()
	if v := repo.Descriptor.Property(PropAtomicLoading, ""); v != "" {
		atomic = v == "true"
	}

	for _, child := range repo.Descriptor.Children {
		childURI, err := resolveChildURI(repo.URI, child)
		if err == nil {
			var childRepo *Repository
			childRepo, err = m.load(ctx, childURI)
			if err == nil {
				repo.Children = append(repo.Children, childRepo)
				continue
			}
		}

		if atomic {
			return fmt.Errorf("failed to load composite %s: child %s: %w", repo.URI, child, err)
		}
	}
	return nil
}

// atomicLoadingDefault reads the global policy switch. Unset behaves as
// lenient, matching the pre-policy default before the agent runs.
func atomicLoadingDefault() bool {
	return os.Getenv(AtomicLoadingEnv) == "true"
}

func (m *baseManager) Contains(uri string) bool {
	key, err := location.Normalize(uri)
	if err != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.loaded[key]
	return ok
}

func (m *baseManager) RemoveRepository(uri string) {
	key, err := location.Normalize(uri)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.loaded, key)
}

// FetchArtifact streams one artifact of a loaded repository, preferring a
// mirror when the repository offers one and verifying the descriptor's
// sha256 while reading. The returned reader fails at EOF on digest
// mismatch.
func FetchArtifact(ctx context.Context, t transport.Transport, ref ArtifactRef) (io.ReadCloser, error) {
	base := ref.Repository.URI
	if len(ref.Repository.Descriptor.Mirrors) > 0 {
		base = ref.Repository.Descriptor.Mirrors[0]
	}

	uri, err := resourceURI(base, ref.Artifact.Path)
	if err != nil {
		return nil, err
	}

	body, _, err := t.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}

	if ref.Artifact.SHA256 == "" {
		return body, nil
	}
	return newVerifiedReader(body, ref.Artifact.SHA256), nil
}

// verifiedReader checks a sha256 digest once the underlying stream is
// exhausted.
type verifiedReader struct {
	inner  io.ReadCloser
	hash   hash.Hash
	expect string
}

func newVerifiedReader(inner io.ReadCloser, expect string) *verifiedReader {
	return &verifiedReader{inner: inner, hash: sha256.New(), expect: expect}
}

func (v *verifiedReader) Read(p []byte) (int, error) {
	n, err := v.inner.Read(p)
	if n > 0 {
		v.hash.Write(p[:n])
	}
	if err == io.EOF {
		if got := hex.EncodeToString(v.hash.Sum(nil)); got != v.expect {
			return n, fmt.Errorf("artifact checksum mismatch: expected %s, got %s", v.expect, got)
		}
	}
	return n, err
}

func (v *verifiedReader) Close() error {
	return v.inner.Close()
}
