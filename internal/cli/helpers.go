package cli

import (
	"fmt"

	"repostack/internal/agent"
	"repostack/internal/config"
	"repostack/internal/repository"
)

// newAgent builds a fully decorated remote agent from the session
// configuration. The base managers read the transport through the agent
// registry so they pick up the caching transport wired by the decoration.
func newAgent(cfg config.SessionConfig) (*agent.RemoteAgent, error) {
	base := agent.NewRegistry()

	tr := agent.TransportOf(base)
	base.RegisterService(agent.ServiceMetadataManager, repository.NewMetadataManager(tr))
	base.RegisterService(agent.ServiceArtifactManager, repository.NewArtifactManager(tr))

	return agent.NewRemoteAgent(base, agent.Options{
		Locations:      cfg.Locations(),
		Settings:       cfg.Settings(),
		DisableMirrors: cfg.DisableMirrors,
		Verbose:        verbose,
	})
}

// targetRepository resolves the repository URL and id for a command: an
// explicit URL argument wins, otherwise the session default is used.
func targetRepository(cfg config.SessionConfig, arg string) (url, id string, err error) {
	if arg != "" {
		// An explicit argument may be a configured id or a raw URL.
		if repo, exists := cfg.Repositories[arg]; exists {
			return repo.URL, arg, nil
		}
		return arg, "", nil
	}

	if cfg.Current == "" {
		return "", "", fmt.Errorf("no repository specified and no default configured. Use 'rsk repo add' first")
	}
	repo, exists := cfg.Repositories[cfg.Current]
	if !exists {
		return "", "", fmt.Errorf("default repository '%s' not found", cfg.Current)
	}
	return repo.URL, cfg.Current, nil
}
