package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v67/github"
	"golang.org/x/oauth2"

	"repostack/internal/credentials"
)

// GitHubReleasesTransport fetches artifacts published as GitHub release
// assets. URIs name the asset directly:
//
//	github://owner/repo/v1.2.0/artifact.tar.gz
//
// Tags containing slashes are not supported by this addressing scheme.
type GitHubReleasesTransport struct {
	verbose bool
}

var _ RawTransport = (*GitHubReleasesTransport)(nil)

// NewGitHubReleasesTransport creates a GitHub releases transport.
func NewGitHubReleasesTransport() *GitHubReleasesTransport {
	return &GitHubReleasesTransport{}
}

// SetVerbose enables request logging.
func (t *GitHubReleasesTransport) SetVerbose(verbose bool) {
	t.verbose = verbose
}

// Fetch implements RawTransport.
func (t *GitHubReleasesTransport) Fetch(ctx context.Context, uri string, creds credentials.Credentials) (io.ReadCloser, Metadata, error) {
	ref, err := parseGitHubURI(uri)
	if err != nil {
		return nil, Metadata{}, err
	}

	client := t.client(ctx, creds)
	asset, err := findReleaseAsset(ctx, client, uri, ref)
	if err != nil {
		return nil, Metadata{}, err
	}

	if t.verbose {
		fmt.Printf("🌐 downloading release asset %s/%s %s#%s\n", ref.owner, ref.repo, ref.tag, ref.asset)
	}

	rc, _, err := client.Repositories.DownloadReleaseAsset(ctx, ref.owner, ref.repo, asset.GetID(), http.DefaultClient)
	if err != nil {
		return nil, Metadata{}, NewTransportError(ErrConnectionFailed, uri, err.Error())
	}

	meta := Metadata{Size: int64(asset.GetSize())}
	if updated := asset.GetUpdatedAt(); !updated.IsZero() {
		meta.LastModified = updated.Time
	}
	return rc, meta, nil
}

// Stat implements RawTransport.
func (t *GitHubReleasesTransport) Stat(ctx context.Context, uri string, creds credentials.Credentials) (Metadata, error) {
	ref, err := parseGitHubURI(uri)
	if err != nil {
		return Metadata{}, err
	}

	asset, err := findReleaseAsset(ctx, t.client(ctx, creds), uri, ref)
	if err != nil {
		return Metadata{}, err
	}

	meta := Metadata{Size: int64(asset.GetSize())}
	if updated := asset.GetUpdatedAt(); !updated.IsZero() {
		meta.LastModified = updated.Time
	}
	return meta, nil
}

func (t *GitHubReleasesTransport) client(ctx context.Context, creds credentials.Credentials) *github.Client {
	token := creds.Token
	if token == "" {
		token = creds.Password
	}
	if token == "" {
		return github.NewClient(nil)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

type githubRef struct {
	owner string
	repo  string
	tag   string
	asset string
}

func parseGitHubURI(uri string) (githubRef, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "github" {
		return githubRef{}, NewTransportError(ErrUnsupportedURI, uri, "expected github://owner/repo/tag/asset")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if u.Host == "" || len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return githubRef{}, NewTransportError(ErrUnsupportedURI, uri, "expected github://owner/repo/tag/asset")
	}

	return githubRef{owner: u.Host, repo: parts[0], tag: parts[1], asset: parts[2]}, nil
}

func findReleaseAsset(ctx context.Context, client *github.Client, uri string, ref githubRef) (*github.ReleaseAsset, error) {
	release, resp, err := client.Repositories.GetReleaseByTag(ctx, ref.owner, ref.repo, ref.tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, NewTransportError(ErrNotFound, uri, fmt.Sprintf("no release for tag %s", ref.tag))
		}
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, NewTransportError(ErrUnauthorized, uri, err.Error())
		}
		return nil, NewTransportError(ErrConnectionFailed, uri, err.Error())
	}

	for _, asset := range release.Assets {
		if asset.GetName() == ref.asset {
			return asset, nil
		}
	}
	return nil, NewTransportError(ErrNotFound, uri, fmt.Sprintf("release %s has no asset %s", ref.tag, ref.asset))
}
