package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	gittransport "github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"repostack/internal/credentials"
)

// GitTransport serves files out of a cloned git working copy. URIs use the
// git+https scheme with the file path appended after the ".git" suffix:
//
//	git+https://github.com/org/repo.git/metadata.json
//
// The checkout is cloned once per repository under cacheDir and pulled on
// later requests.
type GitTransport struct {
	cacheDir string
	verbose  bool

	mu    sync.Mutex
	repos map[string]*git.Repository
}

var _ RawTransport = (*GitTransport)(nil)

// NewGitTransport creates a git transport with checkouts under cacheDir.
func NewGitTransport(cacheDir string) *GitTransport {
	return &GitTransport{
		cacheDir: cacheDir,
		repos:    make(map[string]*git.Repository),
	}
}

// SetVerbose enables progress output.
func (t *GitTransport) SetVerbose(verbose bool) {
	t.verbose = verbose
}

// Fetch implements RawTransport.
func (t *GitTransport) Fetch(ctx context.Context, uri string, creds credentials.Credentials) (io.ReadCloser, Metadata, error) {
	repoURL, filePath, err := splitGitURI(uri)
	if err != nil {
		return nil, Metadata{}, err
	}

	checkout, err := t.ensureRepo(ctx, repoURL, creds)
	if err != nil {
		return nil, Metadata{}, err
	}

	fullPath := filepath.Join(checkout, filepath.FromSlash(filePath))
	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, Metadata{}, NewTransportError(ErrNotFound, uri, err.Error())
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("failed to open %s: %w", fullPath, err)
	}

	return f, Metadata{Size: info.Size(), LastModified: info.ModTime()}, nil
}

// Stat implements RawTransport.
func (t *GitTransport) Stat(ctx context.Context, uri string, creds credentials.Credentials) (Metadata, error) {
	body, meta, err := t.Fetch(ctx, uri, creds)
	if err != nil {
		return Metadata{}, err
	}
	body.Close()
	return meta, nil
}

// splitGitURI separates the clone URL from the in-repo file path.
func splitGitURI(uri string) (repoURL, filePath string, err error) {
	trimmed := strings.TrimPrefix(uri, "git+")
	idx := strings.Index(trimmed, ".git")
	if !strings.HasPrefix(trimmed, "https://") || idx < 0 {
		return "", "", NewTransportError(ErrUnsupportedURI, uri, "expected git+https://host/org/repo.git/path")
	}

	repoURL = trimmed[:idx+len(".git")]
	filePath = strings.TrimPrefix(trimmed[idx+len(".git"):], "/")
	if filePath == "" {
		return "", "", NewTransportError(ErrUnsupportedURI, uri, "missing file path after repository")
	}
	return repoURL, filePath, nil
}

// checkoutDir returns the cache directory for a clone URL.
func (t *GitTransport) checkoutDir(repoURL string) string {
	h := sha256.Sum256([]byte(repoURL))
	dirName := hex.EncodeToString(h[:8])

	parts := strings.Split(strings.TrimSuffix(repoURL, ".git"), "/")
	repoName := parts[len(parts)-1]

	return filepath.Join(t.cacheDir, "git", fmt.Sprintf("%s-%s", repoName, dirName))
}

// ensureRepo clones or refreshes the working copy and returns its path.
func (t *GitTransport) ensureRepo(ctx context.Context, repoURL string, creds credentials.Credentials) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir := t.checkoutDir(repoURL)

	repo, ok := t.repos[repoURL]
	if !ok {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			opened, err := git.PlainOpen(dir)
			if err != nil {
				return "", fmt.Errorf("failed to open repository: %w", err)
			}
			repo = opened
		} else {
			cloned, err := t.clone(ctx, repoURL, dir, creds)
			if err != nil {
				return "", err
			}
			t.repos[repoURL] = cloned
			return dir, nil
		}
		t.repos[repoURL] = repo
	}

	if err := t.pull(ctx, repo, repoURL, creds); err != nil {
		return "", err
	}
	return dir, nil
}

func (t *GitTransport) clone(ctx context.Context, repoURL, dir string, creds credentials.Credentials) (*git.Repository, error) {
	if t.verbose {
		fmt.Printf("📥 Cloning repository %s\n", repoURL)
		fmt.Printf("📂 Checkout directory: %s\n", dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkout directory: %w", err)
	}

	cloneOpts := &git.CloneOptions{
		URL:  repoURL,
		Auth: gitAuth(repoURL, creds),
	}
	if t.verbose {
		cloneOpts.Progress = os.Stdout
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, cloneOpts)
	if err != nil {
		if err == gittransport.ErrAuthenticationRequired {
			return nil, NewTransportError(ErrUnauthorized, repoURL,
				"authentication required - configure credentials for this repository")
		}
		return nil, NewTransportError(ErrConnectionFailed, repoURL, err.Error())
	}

	return repo, nil
}

func (t *GitTransport) pull(ctx context.Context, repo *git.Repository, repoURL string, creds credentials.Credentials) error {
	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	pullOpts := &git.PullOptions{
		RemoteName: "origin",
		Auth:       gitAuth(repoURL, creds),
	}
	if t.verbose {
		pullOpts.Progress = os.Stdout
	}

	err = w.PullContext(ctx, pullOpts)
	if err != nil && err != git.NoErrAlreadyUpToDate {
		if err == gittransport.ErrAuthenticationRequired {
			return NewTransportError(ErrUnauthorized, repoURL,
				"authentication required - configure credentials for this repository")
		}
		return fmt.Errorf("failed to pull latest changes: %w", err)
	}

	return nil
}

// gitAuth maps stored credentials to the auth scheme the hosting provider
// expects for token access over HTTPS.
func gitAuth(repoURL string, creds credentials.Credentials) gittransport.AuthMethod {
	if creds.Username != "" {
		return &githttp.BasicAuth{Username: creds.Username, Password: creds.Password}
	}
	if creds.Token == "" {
		return nil
	}

	username := "token"
	switch {
	case strings.Contains(repoURL, "gitlab.com"):
		username = "oauth2"
	case strings.Contains(repoURL, "bitbucket.org"):
		username = "x-token-auth"
	}

	return &githttp.BasicAuth{Username: username, Password: creds.Token}
}
