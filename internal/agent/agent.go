package agent

import (
	"context"
	"fmt"
	"io"

	"repostack/internal/cache"
	"repostack/internal/credentials"
	"repostack/internal/location"
	"repostack/internal/repository"
	"repostack/internal/transport"
)

// Options configures the remote agent for one provisioning session.
type Options struct {
	// Locations are the build-configured repository locations.
	Locations []location.Location

	// Settings supplies saved credentials. Nil means anonymous mode:
	// every credential resolution returns none without consulting any
	// location.
	Settings credentials.SettingsProvider

	// DisableMirrors forces artifact loads to ignore repository mirrors.
	DisableMirrors bool

	// CacheDir overrides the default ~/.repostack/cache location.
	CacheDir string

	// RawTransport overrides the default scheme mux. Used by tests.
	RawTransport transport.RawTransport

	Verbose bool
}

// RemoteAgent decorates a base provisioning agent with credential-aware,
// caching repository access. It exposes the same service contract as the
// base agent; once constructed there is no way to bypass the decoration.
type RemoteAgent struct {
	delegate Agent
}

var _ Agent = (*RemoteAgent)(nil)

// NewRemoteAgent wires the decorator chain onto the base agent and applies
// the atomic composite loading policy. The base agent must already carry
// the base metadata and artifact managers; a missing base service aborts
// construction and no partially wired agent is returned.
func NewRemoteAgent(base Agent, opts Options) (*RemoteAgent, error) {
	// Validate required base services before touching the registry.
	metadataMgr, ok := Service[repository.Manager](base, ServiceMetadataManager)
	if !ok {
		return nil, fmt.Errorf("base agent has no metadata repository manager")
	}
	artifactMgr, ok := Service[repository.Manager](base, ServiceArtifactManager)
	if !ok {
		return nil, fmt.Errorf("base agent has no artifact repository manager")
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		var err error
		cacheDir, err = cache.DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate cache directory: %w", err)
		}
	}
	fileCache, err := cache.New(cacheDir)
	if err != nil {
		return nil, err
	}

	ids := location.NewIDManager(opts.Locations)
	resolver := credentials.NewResolver(opts.Settings, ids)

	raw := opts.RawTransport
	if raw == nil {
		raw = transport.DefaultMux(cacheDir, opts.Verbose)
	}
	caching := transport.NewCachingTransport(raw, fileCache, resolver)

	// Build the full decorator graph first, then register only the
	// outermost instance per service name.
	if opts.DisableMirrors {
		artifactMgr = repository.NewMirrorDisablingManager(artifactMgr, opts.Verbose)
	}
	if opts.Settings != nil {
		metadataMgr = repository.NewRemoteManager(metadataMgr, ids)
		artifactMgr = repository.NewRemoteManager(artifactMgr, ids)
	}

	base.RegisterService(ServiceTransport, caching)
	base.RegisterService(ServiceCacheManager, fileCache)
	base.RegisterService(ServiceIDManager, ids)
	if opts.Settings != nil {
		base.RegisterService(ServiceSettings, opts.Settings)
	}
	base.RegisterService(ServiceMetadataManager, metadataMgr)
	base.RegisterService(ServiceArtifactManager, artifactMgr)

	applyAtomicLoadingPolicy()

	return &RemoteAgent{delegate: base}, nil
}

func (a *RemoteAgent) GetService(name string) any {
	return a.delegate.GetService(name)
}

func (a *RemoteAgent) RegisterService(name string, service any) {
	a.delegate.RegisterService(name, service)
}

func (a *RemoteAgent) UnregisterService(name string, service any) {
	a.delegate.UnregisterService(name, service)
}

func (a *RemoteAgent) Stop() {
	a.delegate.Stop()
}

// TransportOf returns a transport view over whatever transport service is
// currently registered on the agent. Base managers constructed before the
// decoration use this so they pick up the caching transport once the
// remote agent replaces the service.
func TransportOf(a Agent) transport.Transport {
	return agentTransport{agent: a}
}

type agentTransport struct {
	agent Agent
}

func (t agentTransport) Fetch(ctx context.Context, uri string) (io.ReadCloser, transport.Metadata, error) {
	tr, ok := Service[transport.Transport](t.agent, ServiceTransport)
	if !ok {
		return nil, transport.Metadata{}, fmt.Errorf("no transport service registered")
	}
	return tr.Fetch(ctx, uri)
}

func (t agentTransport) Stat(ctx context.Context, uri string) (transport.Metadata, error) {
	tr, ok := Service[transport.Transport](t.agent, ServiceTransport)
	if !ok {
		return transport.Metadata{}, fmt.Errorf("no transport service registered")
	}
	return tr.Stat(ctx, uri)
}
