package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"repostack/internal/credentials"
	"repostack/internal/location"
)

// Repository is one configured repository location. The map key in
// SessionConfig is its logical id.
type Repository struct {
	URL      string `toml:"url"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
	Token    string `toml:"token,omitempty"`
}

// HasCredentials reports whether any credential material is configured.
func (r Repository) HasCredentials() bool {
	return r.Username != "" || r.Password != "" || r.Token != ""
}

// SessionConfig is the per-user provisioning session configuration stored
// in ~/.repostack/config.toml.
type SessionConfig struct {
	Current        string                `toml:"current"`
	DisableMirrors bool                  `toml:"disable_mirrors,omitempty"`
	Repositories   map[string]Repository `toml:"repositories"`
}

// ConfigDir returns the session config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".repostack"), nil
}

// ConfigPath returns the full path to config.toml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadSession loads the session configuration, returning an empty config
// when the file does not exist yet.
func LoadSession() (SessionConfig, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return SessionConfig{}, err
	}
	return LoadSessionFile(configPath)
}

// LoadSessionFile loads a session configuration from an explicit path.
func LoadSessionFile(path string) (SessionConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return SessionConfig{Repositories: make(map[string]Repository)}, nil
	}
	if err != nil {
		return SessionConfig{}, err
	}

	var config SessionConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return SessionConfig{}, err
	}

	if config.Repositories == nil {
		config.Repositories = make(map[string]Repository)
	}

	return config, nil
}

// SaveSession writes the session configuration to ~/.repostack/config.toml.
func SaveSession(config SessionConfig) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveSessionFile(configPath, config)
}

// SaveSessionFile writes a session configuration to an explicit path.
func SaveSessionFile(path string, config SessionConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	// Credentials live in this file, keep it private.
	return os.WriteFile(path, data, 0o600)
}

// Locations converts the configured repositories into repository locations.
// Entries with invalid URLs are skipped; the agent surfaces those when the
// repository is actually used.
func (c SessionConfig) Locations() []location.Location {
	out := make([]location.Location, 0, len(c.Repositories))
	for id, repo := range c.Repositories {
		loc, err := location.New(repo.URL, id)
		if err != nil {
			continue
		}
		out = append(out, loc)
	}
	return out
}

// Settings builds the credential settings provider from the configured
// repositories. When no repository carries credentials the result is nil,
// which keeps the resolver in its anonymous short-circuit mode.
func (c SessionConfig) Settings() credentials.SettingsProvider {
	settings := credentials.NewMapSettings()
	found := false

	for id, repo := range c.Repositories {
		if !repo.HasCredentials() {
			continue
		}
		creds := credentials.Credentials{
			Username: repo.Username,
			Password: repo.Password,
			Token:    repo.Token,
		}
		settings.SetForID(id, creds)
		found = true
		// URL keying is best-effort, id lookups still work for
		// repositories configured with an invalid URL.
		_ = settings.SetForURL(repo.URL, creds)
	}

	if !found {
		return nil
	}
	return settings
}
