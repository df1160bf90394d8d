package repository

import (
	"context"

	"repostack/internal/location"
)

// RemoteManager decorates a base manager so every load first records the
// URL-to-id mapping into the id manager, making the id available for later
// credential lookups keyed by repository id. It is pure enrichment: the
// delegate's result and errors pass through unchanged.
type RemoteManager struct {
	delegate Manager
	ids      *location.IDManager
}

var _ Manager = (*RemoteManager)(nil)

// NewRemoteManager wraps a base metadata or artifact manager.
func NewRemoteManager(delegate Manager, ids *location.IDManager) *RemoteManager {
	return &RemoteManager{delegate: delegate, ids: ids}
}

func (m *RemoteManager) LoadRepository(ctx context.Context, uri, id string) (*Repository, error) {
	if id != "" {
		// A malformed URI surfaces from the delegate; recording is
		// best-effort enrichment.
		_ = m.ids.Record(uri, id)
	}
	return m.delegate.LoadRepository(ctx, uri, id)
}

func (m *RemoteManager) Contains(uri string) bool {
	return m.delegate.Contains(uri)
}

func (m *RemoteManager) RemoveRepository(uri string) {
	m.delegate.RemoveRepository(uri)
}
