package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"repostack/internal/agent"
	"repostack/internal/config"
	"repostack/internal/repository"
)

// resolveCmd loads a repository and prints its contents
var resolveCmd = &cobra.Command{
	Use:   "resolve [url-or-id]",
	Short: "Load a repository and list its contents",
	Long: `Load a repository's metadata descriptor and list its units.

Composite repositories are followed into their children. With no argument
the session's default repository is resolved.

Examples:
  rsk resolve
  rsk resolve central
  rsk resolve https://repo.example.com/releases/`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) > 0 {
			arg = args[0]
		}
		return runResolve(arg)
	},
}

func runResolve(arg string) error {
	cfg, err := config.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	url, id, err := targetRepository(cfg, arg)
	if err != nil {
		return err
	}

	a, err := newAgent(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}
	defer a.Stop()

	mgr, ok := agent.Service[repository.Manager](a, agent.ServiceMetadataManager)
	if !ok {
		return fmt.Errorf("no metadata repository manager registered")
	}

	if verbose {
		fmt.Printf("🔍 Resolving %s\n", url)
	}

	repo, err := mgr.LoadRepository(context.Background(), url, id)
	if err != nil {
		return fmt.Errorf("failed to load repository: %w", err)
	}

	printRepository(repo, 0)
	return nil
}

func printRepository(repo *repository.Repository, depth int) {
	indent := strings.Repeat("  ", depth)

	label := "📦"
	if repo.Descriptor.Composite {
		label = "📚"
	}
	fmt.Printf("%s%s %s (%s)\n", indent, label, repo.Descriptor.Name, repo.URI)

	for _, unit := range repo.Descriptor.Units {
		fmt.Printf("%s  - %s %s\n", indent, unit.ID, unit.Version)
	}
	for _, child := range repo.Children {
		printRepository(child, depth+1)
	}
}
