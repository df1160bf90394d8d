package db

import (
	"database/sql"
	"fmt"
)

// GetOrCreateRepository gets an existing repository or creates a new one
func (db *DB) GetOrCreateRepository(name string, description *string, composite bool) (*Repository, error) {
	// First try to get existing
	repo, err := db.GetRepository(name)
	if err == nil {
		return repo, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	query := `
        INSERT INTO repositories (name, description, composite)
        VALUES ($1, $2, $3)
        RETURNING id, name, description, composite, atomic_loading, created_at`

	var newRepo Repository
	err = db.Get(&newRepo, query, name, description, composite)
	if err != nil {
		return nil, err
	}

	return &newRepo, nil
}

// SetAtomicLoading records the repository's atomic loading override.
// A nil value clears the override so clients fall back to their default.
func (db *DB) SetAtomicLoading(repositoryID int, atomic *bool) error {
	query := `UPDATE repositories SET atomic_loading = $2 WHERE id = $1`
	_, err := db.Exec(query, repositoryID, atomic)
	return err
}

// GetRepository retrieves a repository by name
func (db *DB) GetRepository(name string) (*Repository, error) {
	query := `SELECT id, name, description, composite, atomic_loading, created_at FROM repositories WHERE name = $1`

	var repo Repository
	err := db.Get(&repo, query, name)
	if err != nil {
		return nil, err
	}

	return &repo, nil
}

// ListRepositories returns all hosted repositories
func (db *DB) ListRepositories(limit int) ([]Repository, error) {
	query := `SELECT id, name, description, composite, atomic_loading, created_at FROM repositories ORDER BY created_at DESC`
	args := []interface{}{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	var repos []Repository
	err := db.Select(&repos, query, args...)
	if err != nil {
		return nil, err
	}

	return repos, nil
}

// CreateArtifact records an uploaded artifact
func (db *DB) CreateArtifact(artifact Artifact) (*Artifact, error) {
	query := `
        INSERT INTO artifacts (repository_id, name, version, sha256, size_bytes, blob_path)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, repository_id, name, version, sha256, size_bytes, blob_path, created_at`

	var newArtifact Artifact
	err := db.Get(&newArtifact, query,
		artifact.RepositoryID,
		artifact.Name,
		artifact.Version,
		artifact.SHA256,
		artifact.SizeBytes,
		artifact.BlobPath,
	)

	if err != nil {
		return nil, err
	}

	return &newArtifact, nil
}

// GetArtifacts lists the artifacts of a repository
func (db *DB) GetArtifacts(repositoryID int) ([]Artifact, error) {
	query := `
        SELECT id, repository_id, name, version, sha256, size_bytes, blob_path, created_at
        FROM artifacts
        WHERE repository_id = $1
        ORDER BY name, version`

	var artifacts []Artifact
	err := db.Select(&artifacts, query, repositoryID)
	if err != nil {
		return nil, err
	}

	return artifacts, nil
}

// GetArtifactBySHA256 finds an artifact blob by its digest
func (db *DB) GetArtifactBySHA256(sha256 string) (*Artifact, error) {
	query := `
        SELECT id, repository_id, name, version, sha256, size_bytes, blob_path, created_at
        FROM artifacts
        WHERE sha256 = $1
        LIMIT 1`

	var artifact Artifact
	err := db.Get(&artifact, query, sha256)
	if err != nil {
		return nil, err
	}

	return &artifact, nil
}

// GetCompositeChildren lists the child references of a composite repository
func (db *DB) GetCompositeChildren(repositoryID int) ([]CompositeChild, error) {
	query := `
        SELECT id, repository_id, child_uri, position
        FROM composite_children
        WHERE repository_id = $1
        ORDER BY position`

	var children []CompositeChild
	err := db.Select(&children, query, repositoryID)
	if err != nil {
		return nil, err
	}

	return children, nil
}

// AddCompositeChild appends a child reference to a composite repository
func (db *DB) AddCompositeChild(repositoryID int, childURI string) (*CompositeChild, error) {
	query := `
        INSERT INTO composite_children (repository_id, child_uri, position)
        VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM composite_children WHERE repository_id = $1))
        RETURNING id, repository_id, child_uri, position`

	var child CompositeChild
	err := db.Get(&child, query, repositoryID, childURI)
	if err != nil {
		return nil, fmt.Errorf("failed to add composite child: %w", err)
	}

	return &child, nil
}
