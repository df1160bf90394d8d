package transport

import (
	"context"
	"io"
	"strings"

	"repostack/internal/credentials"
)

// Mux routes requests to the raw transport that understands the URI's
// scheme. It is itself a RawTransport, so the caching layer stays
// scheme-agnostic.
type Mux struct {
	byScheme map[string]RawTransport
}

var _ RawTransport = (*Mux)(nil)

// NewMux creates an empty transport mux.
func NewMux() *Mux {
	return &Mux{byScheme: make(map[string]RawTransport)}
}

// Handle registers a raw transport for a URI scheme.
func (m *Mux) Handle(scheme string, t RawTransport) {
	m.byScheme[strings.ToLower(scheme)] = t
}

// Fetch implements RawTransport.
func (m *Mux) Fetch(ctx context.Context, uri string, creds credentials.Credentials) (io.ReadCloser, Metadata, error) {
	t, err := m.pick(uri)
	if err != nil {
		return nil, Metadata{}, err
	}
	return t.Fetch(ctx, uri, creds)
}

// Stat implements RawTransport.
func (m *Mux) Stat(ctx context.Context, uri string, creds credentials.Credentials) (Metadata, error) {
	t, err := m.pick(uri)
	if err != nil {
		return Metadata{}, err
	}
	return t.Stat(ctx, uri, creds)
}

func (m *Mux) pick(uri string) (RawTransport, error) {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return nil, NewTransportError(ErrUnsupportedURI, uri, "missing scheme")
	}

	scheme := strings.ToLower(uri[:idx])
	t, ok := m.byScheme[scheme]
	if !ok {
		return nil, NewTransportError(ErrUnsupportedURI, uri, "no transport for scheme "+scheme)
	}
	return t, nil
}

// DefaultMux wires the standard scheme set: http/https, git+https and
// github release assets.
func DefaultMux(cacheDir string, verbose bool) *Mux {
	httpTransport := NewHTTPTransport()
	httpTransport.SetVerbose(verbose)

	gitTransport := NewGitTransport(cacheDir)
	gitTransport.SetVerbose(verbose)

	ghTransport := NewGitHubReleasesTransport()
	ghTransport.SetVerbose(verbose)

	m := NewMux()
	m.Handle("http", httpTransport)
	m.Handle("https", httpTransport)
	m.Handle("git+https", gitTransport)
	m.Handle("github", ghTransport)
	return m
}
