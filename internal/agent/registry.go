// Package agent hosts the provisioning service registry and the remote
// agent composition root that decorates its base services.
package agent

import (
	"sync"
)

// Service names registered on an agent. Exactly one instance per name is
// visible at any time; registering under an existing name replaces the
// previous instance.
const (
	ServiceTransport       = "repostack.transport"
	ServiceCacheManager    = "repostack.cacheManager"
	ServiceMetadataManager = "repostack.metadataRepositoryManager"
	ServiceArtifactManager = "repostack.artifactRepositoryManager"
	ServiceIDManager       = "repostack.repositoryIdManager"
	ServiceSettings        = "repostack.repositorySettings"
)

// Agent is the provisioning service registry contract. Callers cannot
// distinguish a decorated agent from a plain one except by behavior.
type Agent interface {
	GetService(name string) any
	RegisterService(name string, service any)
	UnregisterService(name string, service any)
	Stop()
}

// Service looks up a registered service with its concrete type. The second
// result is false when the name is unregistered or holds another type.
func Service[T any](a Agent, name string) (T, bool) {
	var zero T
	svc := a.GetService(name)
	if svc == nil {
		return zero, false
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// stopper is implemented by services that release resources on agent stop.
type stopper interface {
	Stop()
}

// Registry is the in-memory base agent. Registration happens during agent
// construction; lookups afterwards take only a read lock.
type Registry struct {
	mu       sync.RWMutex
	services map[string]any
}

var _ Agent = (*Registry)(nil)

// NewRegistry creates an empty service registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]any)}
}

func (r *Registry) GetService(name string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[name]
}

func (r *Registry) RegisterService(name string, service any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = service
}

// UnregisterService removes a registration only when the given instance is
// the one currently registered.
func (r *Registry) UnregisterService(name string, service any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.services[name]; ok && current == service {
		delete(r.services, name)
	}
}

// Stop stops every service that supports stopping and clears the registry.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, svc := range r.services {
		if s, ok := svc.(stopper); ok {
			s.Stop()
		}
	}
	r.services = make(map[string]any)
}
