package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"repostack/internal/config"
	"repostack/internal/credentials"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage repository credentials",
	Long: `Manage saved credentials for configured repositories.

Credentials saved for a repository also apply to repositories whose URL
it prefixes, so one login can cover a whole repository tree.`,
}

// loginCmd saves credentials for a repository
var loginCmd = &cobra.Command{
	Use:   "login [id]",
	Short: "Save credentials for a repository",
	Long: `Save credentials for a configured repository.

With no id the default repository is used. Leave the token empty to use
username and password instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		return runLogin(id)
	},
}

// logoutCmd removes saved credentials
var logoutCmd = &cobra.Command{
	Use:   "logout [id]",
	Short: "Remove saved credentials for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		return runLogout(id)
	},
}

// authStatusCmd shows which repositories have credentials
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show saved credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuthStatus()
	},
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

// resolveRepoID picks the target repository: the explicit id, or the
// session default.
func resolveRepoID(cfg config.SessionConfig, id string) (string, error) {
	if id == "" {
		id = cfg.Current
	}
	if id == "" {
		return "", fmt.Errorf("no repository specified and no default configured. Use 'rsk repo add' first")
	}
	if _, exists := cfg.Repositories[id]; !exists {
		return "", fmt.Errorf("repository '%s' not found", id)
	}
	return id, nil
}

func runLogin(id string) error {
	cfg, err := config.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	id, err = resolveRepoID(cfg, id)
	if err != nil {
		return err
	}

	repo := cfg.Repositories[id]
	fmt.Printf("🔐 Saving credentials for '%s' (%s)\n\n", id, repo.URL)

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Token (leave empty for username/password): ")
	token, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	token = strings.TrimSpace(token)

	if token != "" {
		repo.Token = token
		repo.Username = ""
		repo.Password = ""

		if expiry, err := credentials.TokenExpiry(token); err == nil {
			fmt.Printf("⏰ Token expires %s\n", expiry.Format(time.RFC3339))
		}
	} else {
		fmt.Print("Username: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}

		fmt.Print("Password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}

		repo.Username = strings.TrimSpace(username)
		repo.Password = string(passwordBytes)
		repo.Token = ""
	}

	cfg.Repositories[id] = repo
	if err := config.SaveSession(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Credentials saved for '%s'\n", id)
	return nil
}

func runLogout(id string) error {
	cfg, err := config.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	id, err = resolveRepoID(cfg, id)
	if err != nil {
		return err
	}

	repo := cfg.Repositories[id]
	if !repo.HasCredentials() {
		fmt.Printf("No credentials saved for '%s'\n", id)
		return nil
	}

	repo.Username = ""
	repo.Password = ""
	repo.Token = ""
	cfg.Repositories[id] = repo

	if err := config.SaveSession(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("👋 Credentials removed for '%s'\n", id)
	return nil
}

func runAuthStatus() error {
	cfg, err := config.LoadSession()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(cfg.Repositories) == 0 {
		fmt.Println("No repositories configured")
		return nil
	}

	fmt.Printf("🔐 Credential status:\n\n")
	for id, repo := range cfg.Repositories {
		switch {
		case repo.Token != "":
			status := "token"
			if expiry, err := credentials.TokenExpiry(repo.Token); err == nil {
				if time.Now().After(expiry) {
					status = fmt.Sprintf("token (expired %s)", expiry.Format(time.RFC3339))
				} else {
					status = fmt.Sprintf("token (expires %s)", expiry.Format(time.RFC3339))
				}
			}
			fmt.Printf("  %s: %s\n", id, status)
		case repo.Username != "":
			fmt.Printf("  %s: username/password (%s)\n", id, repo.Username)
		default:
			fmt.Printf("  %s: anonymous\n", id)
		}
	}

	return nil
}
