package repository

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"repostack/internal/location"
	"repostack/internal/transport"
)

// fakeTransport serves fixed bodies keyed by URI and counts fetches.
type fakeTransport struct {
	responses map[string]string
	fetches   map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: make(map[string]string),
		fetches:   make(map[string]int),
	}
}

func (f *fakeTransport) serve(uri, body string) {
	f.responses[uri] = body
}

func (f *fakeTransport) Fetch(ctx context.Context, uri string) (io.ReadCloser, transport.Metadata, error) {
	f.fetches[uri]++
	body, ok := f.responses[uri]
	if !ok {
		return nil, transport.Metadata{}, transport.NewTransportError(transport.ErrNotFound, uri, "")
	}
	return io.NopCloser(strings.NewReader(body)), transport.Metadata{Size: int64(len(body))}, nil
}

func (f *fakeTransport) Stat(ctx context.Context, uri string) (transport.Metadata, error) {
	body, ok := f.responses[uri]
	if !ok {
		return transport.Metadata{}, transport.NewTransportError(transport.ErrNotFound, uri, "")
	}
	return transport.Metadata{Size: int64(len(body))}, nil
}

const simpleDescriptor = `{
	"name": "releases",
	"units": [
		{"id": "toolchain", "version": "2.1.0"},
		{"id": "runtime", "version": "1.0.0"}
	]
}`

func TestLoadRepository(t *testing.T) {
	ft := newFakeTransport()
	ft.serve("https://repo.example.com/releases/metadata.json", simpleDescriptor)

	m := NewMetadataManager(ft)
	repo, err := m.LoadRepository(context.Background(), "https://repo.example.com/releases/", "")
	if err != nil {
		t.Fatalf("LoadRepository returned error: %v", err)
	}

	if repo.Descriptor.Name != "releases" {
		t.Errorf("Name = %q, want %q", repo.Descriptor.Name, "releases")
	}
	if len(repo.Descriptor.Units) != 2 {
		t.Errorf("got %d units, want 2", len(repo.Descriptor.Units))
	}
}

func TestLoadRepositoryCachesByNormalizedURI(t *testing.T) {
	ft := newFakeTransport()
	ft.serve("https://repo.example.com/releases/metadata.json", simpleDescriptor)

	m := NewMetadataManager(ft)

	spellings := []string{
		"https://repo.example.com/releases/",
		"HTTPS://REPO.EXAMPLE.COM/releases/",
		"https://repo.example.com/sub/../releases/",
	}
	for _, uri := range spellings {
		if _, err := m.LoadRepository(context.Background(), uri, ""); err != nil {
			t.Fatalf("LoadRepository(%q) returned error: %v", uri, err)
		}
	}

	if got := ft.fetches["https://repo.example.com/releases/metadata.json"]; got != 1 {
		t.Errorf("descriptor fetched %d times, want 1", got)
	}
}

func TestLoadRepositoryNotFound(t *testing.T) {
	m := NewMetadataManager(newFakeTransport())

	_, err := m.LoadRepository(context.Background(), "https://repo.example.com/absent/", "")
	if err == nil {
		t.Fatal("LoadRepository of missing repository succeeded")
	}
	if m.Contains("https://repo.example.com/absent/") {
		t.Error("failed load left the repository registered")
	}
}

func TestContainsAndRemove(t *testing.T) {
	ft := newFakeTransport()
	ft.serve("https://repo.example.com/releases/metadata.json", simpleDescriptor)

	m := NewMetadataManager(ft)
	if _, err := m.LoadRepository(context.Background(), "https://repo.example.com/releases/", ""); err != nil {
		t.Fatal(err)
	}

	if !m.Contains("HTTPS://repo.example.com/releases/") {
		t.Error("Contains missed a loaded repository under a different spelling")
	}

	m.RemoveRepository("https://repo.example.com/releases/")
	if m.Contains("https://repo.example.com/releases/") {
		t.Error("Contains found a removed repository")
	}

	// Removal forces a reload on the next access.
	if _, err := m.LoadRepository(context.Background(), "https://repo.example.com/releases/", ""); err != nil {
		t.Fatal(err)
	}
	if got := ft.fetches["https://repo.example.com/releases/metadata.json"]; got != 2 {
		t.Errorf("descriptor fetched %d times after removal, want 2", got)
	}
}

func compositeDescriptor(children []string, props string) string {
	quoted := make([]string, len(children))
	for i, c := range children {
		quoted[i] = `"` + c + `"`
	}
	doc := `{"name": "aggregate", "composite": true, "children": [` + strings.Join(quoted, ",") + `]`
	if props != "" {
		doc += `, "properties": ` + props
	}
	return doc + `}`
}

func TestCompositeLoading(t *testing.T) {
	ft := newFakeTransport()
	ft.serve("https://repo.example.com/agg/metadata.json",
		compositeDescriptor([]string{"a/", "https://other.example.com/b/"}, ""))
	ft.serve("https://repo.example.com/agg/a/metadata.json", `{"name": "child-a"}`)
	ft.serve("https://other.example.com/b/metadata.json", `{"name": "child-b"}`)

	m := NewMetadataManager(ft)
	repo, err := m.LoadRepository(context.Background(), "https://repo.example.com/agg/", "")
	if err != nil {
		t.Fatalf("LoadRepository returned error: %v", err)
	}

	if len(repo.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(repo.Children))
	}
	if repo.Children[0].Descriptor.Name != "child-a" {
		t.Errorf("child 0 = %q, want child-a (relative reference)", repo.Children[0].Descriptor.Name)
	}
	if repo.Children[1].Descriptor.Name != "child-b" {
		t.Errorf("child 1 = %q, want child-b (absolute reference)", repo.Children[1].Descriptor.Name)
	}
}

func TestCompositeAtomicLoading(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		props   string
		wantErr bool
	}{
		{
			name:    "atomic env fails on missing child",
			env:     "true",
			wantErr: true,
		},
		{
			name: "lenient env keeps survivors",
			env:  "false",
		},
		{
			name: "unset env is lenient",
			env:  "",
		},
		{
			name:  "descriptor opt-out overrides atomic env",
			env:   "true",
			props: `{"atomic.loading": "false"}`,
		},
		{
			name:    "descriptor opt-in overrides lenient env",
			env:     "false",
			props:   `{"atomic.loading": "true"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(AtomicLoadingEnv, tt.env)

			ft := newFakeTransport()
			ft.serve("https://repo.example.com/agg/metadata.json",
				compositeDescriptor([]string{"good/", "broken/"}, tt.props))
			ft.serve("https://repo.example.com/agg/good/metadata.json", `{"name": "good"}`)
			// broken/ is never served

			m := NewMetadataManager(ft)
			repo, err := m.LoadRepository(context.Background(), "https://repo.example.com/agg/", "")

			if tt.wantErr {
				if err == nil {
					t.Fatal("atomic composite load with a missing child succeeded")
				}
				return
			}
			if err != nil {
				t.Fatalf("lenient composite load returned error: %v", err)
			}
			if len(repo.Children) != 1 {
				t.Errorf("got %d children, want the 1 survivor", len(repo.Children))
			}
		})
	}
}

func TestRemoteManagerRecordsID(t *testing.T) {
	ft := newFakeTransport()
	ft.serve("https://repo.example.com/releases/metadata.json", simpleDescriptor)

	ids := location.NewIDManager(nil)
	m := NewRemoteManager(NewMetadataManager(ft), ids)

	if _, err := m.LoadRepository(context.Background(), "https://repo.example.com/releases/", "central"); err != nil {
		t.Fatalf("LoadRepository returned error: %v", err)
	}

	id, ok := ids.IDFor("https://repo.example.com/releases/")
	if !ok || id != "central" {
		t.Errorf("IDFor = (%q, %v), want (central, true)", id, ok)
	}
}

func TestRemoteManagerRecordsIDEvenOnFailedLoad(t *testing.T) {
	ids := location.NewIDManager(nil)
	m := NewRemoteManager(NewMetadataManager(newFakeTransport()), ids)

	if _, err := m.LoadRepository(context.Background(), "https://repo.example.com/absent/", "central"); err == nil {
		t.Fatal("LoadRepository of missing repository succeeded")
	}

	// The mapping is recorded before the delegate runs, so a retry with
	// credentials keyed by id can succeed.
	if id, ok := ids.IDFor("https://repo.example.com/absent/"); !ok || id != "central" {
		t.Errorf("IDFor = (%q, %v), want (central, true)", id, ok)
	}
}

func TestMirrorDisablingManagerStripsMirrors(t *testing.T) {
	ft := newFakeTransport()
	ft.serve("https://repo.example.com/agg/artifacts.json",
		`{"name": "agg", "composite": true, "children": ["a/"], "mirrors": ["https://mirror.example.com/agg/"]}`)
	ft.serve("https://repo.example.com/agg/a/artifacts.json",
		`{"name": "a", "mirrors": ["https://mirror.example.com/a/"]}`)

	m := NewMirrorDisablingManager(NewArtifactManager(ft), false)
	repo, err := m.LoadRepository(context.Background(), "https://repo.example.com/agg/", "")
	if err != nil {
		t.Fatalf("LoadRepository returned error: %v", err)
	}

	if len(repo.Descriptor.Mirrors) != 0 {
		t.Errorf("root kept %d mirrors, want 0", len(repo.Descriptor.Mirrors))
	}
	if len(repo.Children[0].Descriptor.Mirrors) != 0 {
		t.Errorf("child kept %d mirrors, want 0", len(repo.Children[0].Descriptor.Mirrors))
	}
}

func TestFetchArtifact(t *testing.T) {
	content := []byte("artifact bytes")
	digest := sha256.Sum256(content)
	digestHex := hex.EncodeToString(digest[:])

	ft := newFakeTransport()
	ft.serve("https://repo.example.com/releases/files/tool.bin", string(content))

	repo := &Repository{
		URI: "https://repo.example.com/releases/",
		Descriptor: &Descriptor{
			Name: "releases",
			Artifacts: []Artifact{
				{Name: "tool", Version: "1.0.0", Path: "files/tool.bin", SHA256: digestHex},
			},
		},
	}

	ref := ArtifactRef{Repository: repo, Artifact: repo.Descriptor.Artifacts[0]}
	body, err := FetchArtifact(context.Background(), ft, ref)
	if err != nil {
		t.Fatalf("FetchArtifact returned error: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading verified stream returned error: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("body = %q, want %q", data, content)
	}
}

func TestFetchArtifactChecksumMismatch(t *testing.T) {
	ft := newFakeTransport()
	ft.serve("https://repo.example.com/releases/files/tool.bin", "tampered content")

	repo := &Repository{
		URI: "https://repo.example.com/releases/",
		Descriptor: &Descriptor{
			Name: "releases",
			Artifacts: []Artifact{
				{Name: "tool", Version: "1.0.0", Path: "files/tool.bin", SHA256: strings.Repeat("ab", 32)},
			},
		},
	}

	ref := ArtifactRef{Repository: repo, Artifact: repo.Descriptor.Artifacts[0]}
	body, err := FetchArtifact(context.Background(), ft, ref)
	if err != nil {
		t.Fatalf("FetchArtifact returned error: %v", err)
	}
	defer body.Close()

	if _, err := io.ReadAll(body); err == nil {
		t.Error("reading a tampered artifact to EOF succeeded, want checksum error")
	}
}

func TestFetchArtifactPrefersMirror(t *testing.T) {
	ft := newFakeTransport()
	ft.serve("https://mirror.example.com/releases/files/tool.bin", "mirrored")

	repo := &Repository{
		URI: "https://repo.example.com/releases/",
		Descriptor: &Descriptor{
			Name:    "releases",
			Mirrors: []string{"https://mirror.example.com/releases/"},
			Artifacts: []Artifact{
				{Name: "tool", Version: "1.0.0", Path: "files/tool.bin"},
			},
		},
	}

	ref := ArtifactRef{Repository: repo, Artifact: repo.Descriptor.Artifacts[0]}
	body, err := FetchArtifact(context.Background(), ft, ref)
	if err != nil {
		t.Fatalf("FetchArtifact returned error: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "mirrored" {
		t.Errorf("body = %q, want the mirror's copy", data)
	}
	if ft.fetches["https://repo.example.com/releases/files/tool.bin"] != 0 {
		t.Error("primary location was fetched despite an available mirror")
	}
}
