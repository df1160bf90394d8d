package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"repostack/internal/config"
	"repostack/internal/location"
)

// repoCmd represents the repo command group
var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage configured repositories",
	Long: `Manage the repository locations used for dependency provisioning.

Each repository has a logical id and a URL. Credentials saved for an id
apply to that repository and to any repository whose URL it prefixes.`,
}

// repoAddCmd adds a new repository
var repoAddCmd = &cobra.Command{
	Use:   "add <id> <url>",
	Short: "Add a repository",
	Long: `Add a repository location to the session configuration.

Examples:
  rsk repo add central https://repo.example.com/releases/
  rsk repo add tooling git+https://github.com/org/tooling.git`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepoAdd(args[0], args[1])
	},
}

// repoListCmd lists configured repositories
var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepoList()
	},
}

// repoUseCmd sets the default repository
var repoUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Set default repository",
	Long:  `Set the repository used when a command is given no explicit URL.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepoUse(args[0])
	},
}

// repoRemoveCmd removes a repository
var repoRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepoRemove(args[0])
	},
}

func init() {
	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoUseCmd)
	repoCmd.AddCommand(repoRemoveCmd)
}

func runRepoAdd(id, url string) error {
	// Reject URLs the agent cannot normalize up front.
	if _, err := location.New(url, id); err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	cfg, err := config.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Repositories[id] = config.Repository{URL: url}

	// First repository becomes the default
	if cfg.Current == "" {
		cfg.Current = id
	}

	if err := config.SaveSession(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Added repository '%s'\n", id)
	fmt.Printf("🌐 URL: %s\n", url)
	if cfg.Current == id {
		fmt.Printf("⭐ Set as default repository\n")
	}
	fmt.Printf("💡 Use 'rsk auth login %s' to save credentials for it\n", id)

	return nil
}

func runRepoList() error {
	cfg, err := config.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(cfg.Repositories) == 0 {
		fmt.Println("No repositories configured")
		fmt.Println("💡 Use 'rsk repo add <id> <url>' to add one")
		return nil
	}

	ids := make([]string, 0, len(cfg.Repositories))
	for id := range cfg.Repositories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("📚 Configured repositories:\n\n")
	for _, id := range ids {
		repo := cfg.Repositories[id]
		marker := "  "
		if id == cfg.Current {
			marker = "⭐"
		}
		auth := ""
		if repo.HasCredentials() {
			auth = " 🔑"
		}
		fmt.Printf("%s %s: %s%s\n", marker, id, repo.URL, auth)
	}

	return nil
}

func runRepoUse(id string) error {
	cfg, err := config.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, exists := cfg.Repositories[id]; !exists {
		return fmt.Errorf("repository '%s' not found", id)
	}

	cfg.Current = id
	if err := config.SaveSession(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("⭐ Default repository set to '%s'\n", id)
	return nil
}

func runRepoRemove(id string) error {
	cfg, err := config.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, exists := cfg.Repositories[id]; !exists {
		return fmt.Errorf("repository '%s' not found", id)
	}

	delete(cfg.Repositories, id)
	if cfg.Current == id {
		cfg.Current = ""
	}

	if err := config.SaveSession(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("🗑️  Removed repository '%s'\n", id)
	return nil
}
