// Package repository loads remote repository descriptors through the
// transport layer and implements the manager decorators the provisioning
// agent registers over the base managers.
package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Descriptor filenames served at a repository URL.
const (
	MetadataDescriptorName = "metadata.json"
	ArtifactDescriptorName = "artifacts.json"
)

// PropAtomicLoading is the per-repository opt-out property for atomic
// composite loading. It takes precedence over the global default.
const PropAtomicLoading = "atomic.loading"

// Artifact is one downloadable entry of an artifact repository.
type Artifact struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Path    string `json:"path"`
	SHA256  string `json:"sha256,omitempty"`
	Size    int64  `json:"size_bytes,omitempty"`
}

// Unit is one installable unit of a metadata repository.
type Unit struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Descriptor is the JSON document describing a repository. A composite
// descriptor lists child repository URIs instead of content.
type Descriptor struct {
	Name       string            `json:"name"`
	Version    string            `json:"version,omitempty"`
	Composite  bool              `json:"composite,omitempty"`
	Children   []string          `json:"children,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Mirrors    []string          `json:"mirrors,omitempty"`
	Units      []Unit            `json:"units,omitempty"`
	Artifacts  []Artifact        `json:"artifacts,omitempty"`
}

// ParseDescriptor decodes and validates a descriptor document.
func ParseDescriptor(r io.Reader) (*Descriptor, error) {
	var d Descriptor
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("invalid repository descriptor: %w", err)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("invalid repository descriptor: missing name")
	}
	if d.Composite && len(d.Children) == 0 {
		return nil, fmt.Errorf("invalid repository descriptor: composite %q has no children", d.Name)
	}
	return &d, nil
}

// Property returns a descriptor property with a fallback default.
func (d *Descriptor) Property(key, def string) string {
	if v, ok := d.Properties[key]; ok {
		return v
	}
	return def
}

// FindArtifact locates an artifact entry by name and version.
func (d *Descriptor) FindArtifact(name, version string) (Artifact, bool) {
	for _, a := range d.Artifacts {
		if a.Name == name && a.Version == version {
			return a, true
		}
	}
	return Artifact{}, false
}

// Repository is a loaded repository: its descriptor plus resolved children
// for composites.
type Repository struct {
	URI        string
	Descriptor *Descriptor
	Children   []*Repository
}

// AllArtifacts flattens the artifact entries of a repository and its
// children, tagged with the repository that owns each entry.
func (r *Repository) AllArtifacts() []ArtifactRef {
	var out []ArtifactRef
	for _, a := range r.Descriptor.Artifacts {
		out = append(out, ArtifactRef{Repository: r, Artifact: a})
	}
	for _, child := range r.Children {
		out = append(out, child.AllArtifacts()...)
	}
	return out
}

// ArtifactRef ties an artifact entry to the repository it was loaded from.
type ArtifactRef struct {
	Repository *Repository
	Artifact   Artifact
}

// resolveChildURI resolves a child reference against the parent repository
// URI. Absolute references pass through; relative ones join the parent
// path.
func resolveChildURI(parentURI, child string) (string, error) {
	if strings.Contains(child, "://") {
		return child, nil
	}

	parent, err := url.Parse(parentURI)
	if err != nil {
		return "", fmt.Errorf("invalid parent URI %q: %w", parentURI, err)
	}
	return parent.JoinPath(child).String(), nil
}

// resourceURI resolves a file name against the repository base URI.
func resourceURI(repoURI, name string) (string, error) {
	return resolveChildURI(repoURI, name)
}
