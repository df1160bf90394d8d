package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"repostack/internal/agent"
	"repostack/internal/config"
	"repostack/internal/repository"
)

var fetchOutput string

// fetchCmd downloads an artifact from a repository
var fetchCmd = &cobra.Command{
	Use:   "fetch <name> <version> [url-or-id]",
	Short: "Download an artifact",
	Long: `Download an artifact from a repository by name and version.

The artifact repository descriptor is consulted to locate the blob, which
is verified against its recorded digest while downloading. With no
repository argument the session's default repository is used.

Examples:
  rsk fetch toolchain 2.1.0
  rsk fetch toolchain 2.1.0 central -o toolchain.bin`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := ""
		if len(args) > 2 {
			arg = args[2]
		}
		return runFetch(args[0], args[1], arg)
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file (defaults to the artifact name)")
}

func runFetch(name, version, arg string) error {
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

	mgr, ok := agent.Service[repository.Manager](a, agent.ServiceArtifactManager)
	if !ok {
		return fmt.Errorf("no artifact repository manager registered")
	}

	if verbose {
		fmt.Printf("🔍 Loading artifact repository %s\n", url)
	}

	repo, err := mgr.LoadRepository(context.Background(), url, id)
	if err != nil {
		return fmt.Errorf("failed to load repository: %w", err)
	}

	ref, found := findArtifact(repo, name, version)
	if !found {
		return fmt.Errorf("artifact %s %s not found in %s", name, version, url)
	}

	body, err := repository.FetchArtifact(context.Background(), agent.TransportOf(a), ref)
	if err != nil {
		return fmt.Errorf("failed to fetch artifact: %w", err)
	}
	defer body.Close()

	output := fetchOutput
	if output == "" {
		output = name
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, body)
	if err != nil {
		// A digest mismatch surfaces here, at end of stream.
		os.Remove(output)
		return fmt.Errorf("download failed: %w", err)
	}

	fmt.Printf("✅ Fetched %s %s (%d bytes) -> %s\n", name, version, size, output)
	return nil
}

// findArtifact searches the repository tree for a named artifact version.
func findArtifact(repo *repository.Repository, name, version string) (repository.ArtifactRef, bool) {
	for _, ref := range repo.AllArtifacts() {
		if ref.Artifact.Name == name && ref.Artifact.Version == version {
			return ref, true
		}
	}
	return repository.ArtifactRef{}, false
}
