package transport

import (
	"errors"
	"strings"
	"testing"

	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"repostack/internal/credentials"
)

func TestSplitGitURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantRepo string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "repository root file",
			uri:      "git+https://github.com/org/repo.git/metadata.json",
			wantRepo: "https://github.com/org/repo.git",
			wantPath: "metadata.json",
		},
		{
			name:     "nested path",
			uri:      "git+https://github.com/org/repo.git/releases/artifacts.json",
			wantRepo: "https://github.com/org/repo.git",
			wantPath: "releases/artifacts.json",
		},
		{
			name:    "missing file path",
			uri:     "git+https://github.com/org/repo.git",
			wantErr: true,
		},
		{
			name:    "missing .git suffix",
			uri:     "git+https://github.com/org/repo/metadata.json",
			wantErr: true,
		},
		{
			name:    "not https",
			uri:     "git+ssh://github.com/org/repo.git/metadata.json",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, path, err := splitGitURI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedURI) {
					t.Errorf("splitGitURI(%q) error = %v, want ErrUnsupportedURI", tt.uri, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("splitGitURI(%q) returned error: %v", tt.uri, err)
			}
			if repo != tt.wantRepo || path != tt.wantPath {
				t.Errorf("splitGitURI(%q) = (%q, %q), want (%q, %q)", tt.uri, repo, path, tt.wantRepo, tt.wantPath)
			}
		})
	}
}

func TestCheckoutDirStableAndDistinct(t *testing.T) {
	tr := NewGitTransport(t.TempDir())

	a := tr.checkoutDir("https://github.com/org/repo.git")
	b := tr.checkoutDir("https://github.com/org/repo.git")
	c := tr.checkoutDir("https://github.com/other/repo.git")

	if a != b {
		t.Errorf("checkoutDir is not stable: %q != %q", a, b)
	}
	if a == c {
		t.Error("different clone URLs share a checkout directory")
	}
	if !strings.Contains(a, "repo-") {
		t.Errorf("checkoutDir %q does not embed the repository name", a)
	}
}

func TestGitAuth(t *testing.T) {
	tests := []struct {
		name         string
		repoURL      string
		creds        credentials.Credentials
		wantNil      bool
		wantUsername string
		wantPassword string
	}{
		{
			name:    "anonymous",
			repoURL: "https://github.com/org/repo.git",
			wantNil: true,
		},
		{
			name:         "explicit username and password",
			repoURL:      "https://github.com/org/repo.git",
			creds:        credentials.Credentials{Username: "u", Password: "p"},
			wantUsername: "u",
			wantPassword: "p",
		},
		{
			name:         "github token",
			repoURL:      "https://github.com/org/repo.git",
			creds:        credentials.Credentials{Token: "tok"},
			wantUsername: "token",
			wantPassword: "tok",
		},
		{
			name:         "gitlab token",
			repoURL:      "https://gitlab.com/org/repo.git",
			creds:        credentials.Credentials{Token: "tok"},
			wantUsername: "oauth2",
			wantPassword: "tok",
		},
		{
			name:         "bitbucket token",
			repoURL:      "https://bitbucket.org/org/repo.git",
			creds:        credentials.Credentials{Token: "tok"},
			wantUsername: "x-token-auth",
			wantPassword: "tok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := gitAuth(tt.repoURL, tt.creds)
			if tt.wantNil {
				if auth != nil {
					t.Errorf("gitAuth = %v, want nil for anonymous access", auth)
				}
				return
			}

			basic, ok := auth.(*githttp.BasicAuth)
			if !ok {
				t.Fatalf("gitAuth = %T, want *githttp.BasicAuth", auth)
			}
			if basic.Username != tt.wantUsername || basic.Password != tt.wantPassword {
				t.Errorf("gitAuth = (%q, %q), want (%q, %q)",
					basic.Username, basic.Password, tt.wantUsername, tt.wantPassword)
			}
		})
	}
}

func TestParseGitHubURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    githubRef
		wantErr bool
	}{
		{
			uri:  "github://acme/toolchain/v2.1.0/toolchain-linux.tar.gz",
			want: githubRef{owner: "acme", repo: "toolchain", tag: "v2.1.0", asset: "toolchain-linux.tar.gz"},
		},
		{uri: "github://acme/toolchain/v2.1.0", wantErr: true},
		{uri: "github://acme/toolchain/v2.1.0/asset/extra", wantErr: true},
		{uri: "github:///toolchain/v1/asset", wantErr: true},
		{uri: "https://github.com/acme/toolchain", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := parseGitHubURI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedURI) {
					t.Errorf("parseGitHubURI(%q) error = %v, want ErrUnsupportedURI", tt.uri, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseGitHubURI(%q) returned error: %v", tt.uri, err)
			}
			if got != tt.want {
				t.Errorf("parseGitHubURI(%q) = %+v, want %+v", tt.uri, got, tt.want)
			}
		})
	}
}
