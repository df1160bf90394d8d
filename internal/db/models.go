package db

import (
	"time"
)

// Repository is a hosted repository row.
type Repository struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	Composite   bool      `db:"composite" json:"composite"`
	Atomic      *bool     `db:"atomic_loading" json:"atomic_loading"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Artifact is one hosted artifact of a repository.
type Artifact struct {
	ID           int       `db:"id" json:"id"`
	RepositoryID int       `db:"repository_id" json:"repository_id"`
	Name         string    `db:"name" json:"name"`
	Version      string    `db:"version" json:"version"`
	SHA256       string    `db:"sha256" json:"sha256"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	BlobPath     string    `db:"blob_path" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CompositeChild is one child reference of a composite repository.
type CompositeChild struct {
	ID           int    `db:"id" json:"id"`
	RepositoryID int    `db:"repository_id" json:"repository_id"`
	ChildURI     string `db:"child_uri" json:"child_uri"`
	Position     int    `db:"position" json:"position"`
}

// RepositoryInfo combines a repository with its artifacts and children for
// API responses.
type RepositoryInfo struct {
	Repository
	Artifacts []Artifact       `json:"artifacts,omitempty"`
	Children  []CompositeChild `json:"children,omitempty"`
}
