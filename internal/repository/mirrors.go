package repository

import (
	"context"
	"fmt"
)

// MirrorDisablingManager wraps an artifact manager so loaded repositories
// never advertise mirrors. Artifact sourcing then always uses the primary
// location, keeping builds reproducible regardless of mirror selection.
type MirrorDisablingManager struct {
	delegate Manager
	verbose  bool
}

var _ Manager = (*MirrorDisablingManager)(nil)

// NewMirrorDisablingManager wraps a base artifact manager.
func NewMirrorDisablingManager(delegate Manager, verbose bool) *MirrorDisablingManager {
	return &MirrorDisablingManager{delegate: delegate, verbose: verbose}
}

func (m *MirrorDisablingManager) LoadRepository(ctx context.Context, uri, id string) (*Repository, error) {
	repo, err := m.delegate.LoadRepository(ctx, uri, id)
	if err != nil {
		return nil, err
	}
	m.stripMirrors(repo)
	return repo, nil
}

func (m *MirrorDisablingManager) stripMirrors(repo *Repository) {
	if len(repo.Descriptor.Mirrors) > 0 {
		if m.verbose {
			fmt.Printf("🚫 Ignoring mirrors of repository %s\n", repo.URI)
		}
		repo.Descriptor.Mirrors = nil
	}
	for _, child := range repo.Children {
		m.stripMirrors(child)
	}
}

func (m *MirrorDisablingManager) Contains(uri string) bool {
	return m.delegate.Contains(uri)
}

func (m *MirrorDisablingManager) RemoveRepository(uri string) {
	m.delegate.RemoveRepository(uri)
}
