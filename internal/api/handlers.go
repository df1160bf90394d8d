package api

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"repostack/internal/db"
	"repostack/internal/repository"
	"repostack/internal/security"
)

// healthHandler reports API and database health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.DB.Health(); err != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	status["database"] = "ok"
	writeJSON(w, http.StatusOK, status)
}

// listRepositoriesHandler returns all hosted repositories.
func (s *Server) listRepositoriesHandler(w http.ResponseWriter, r *http.Request) {
	repos, err := s.DB.ListRepositories(100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list repositories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"repositories": repos,
		"count":        len(repos),
	})
}

// descriptorFor assembles the descriptor document served for a hosted
// repository. Artifact paths are relative so clients resolve them against
// the repository URI.
func (s *Server) descriptorFor(repo *db.Repository, includeArtifacts bool) (*repository.Descriptor, error) {
	d := &repository.Descriptor{
		Name:      repo.Name,
		Composite: repo.Composite,
	}

	if repo.Atomic != nil {
		d.Properties = map[string]string{
			repository.PropAtomicLoading: strconv.FormatBool(*repo.Atomic),
		}
	}

	if repo.Composite {
		children, err := s.DB.GetCompositeChildren(repo.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			d.Children = append(d.Children, c.ChildURI)
		}
		return d, nil
	}

	artifacts, err := s.DB.GetArtifacts(repo.ID)
	if err != nil {
		return nil, err
	}

	for _, a := range artifacts {
		if includeArtifacts {
			d.Artifacts = append(d.Artifacts, repository.Artifact{
				Name:    a.Name,
				Version: a.Version,
				Path:    "blobs/" + a.SHA256,
				SHA256:  a.SHA256,
				Size:    a.SizeBytes,
			})
		} else {
			d.Units = append(d.Units, repository.Unit{
				ID:      a.Name,
				Version: a.Version,
			})
		}
	}

	return d, nil
}

func (s *Server) serveDescriptor(w http.ResponseWriter, r *http.Request, includeArtifacts bool) {
	name := mux.Vars(r)["name"]

	repo, err := s.DB.GetRepository(name)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Repository not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load repository")
		return
	}

	d, err := s.descriptorFor(repo, includeArtifacts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build descriptor")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// metadataDescriptorHandler serves a repository's metadata.json.
func (s *Server) metadataDescriptorHandler(w http.ResponseWriter, r *http.Request) {
	s.serveDescriptor(w, r, false)
}

// artifactDescriptorHandler serves a repository's artifacts.json.
func (s *Server) artifactDescriptorHandler(w http.ResponseWriter, r *http.Request) {
	s.serveDescriptor(w, r, true)
}

// downloadBlobHandler streams an artifact blob by digest.
func (s *Server) downloadBlobHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	digest := vars["sha256"]

	if err := security.ValidateSHA256(digest); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	artifact, err := s.DB.GetArtifactBySHA256(digest)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Blob not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up blob")
		return
	}

	path := filepath.Join(s.Config.StoragePath, artifact.BlobPath)
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "Blob data missing")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(artifact.SizeBytes, 10))
	w.Header().Set("ETag", `"`+artifact.SHA256+`"`)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))

	io.Copy(w, f)
}

type createRepositoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Composite   bool   `json:"composite"`
	Atomic      *bool  `json:"atomic_loading"`
}

// createRepositoryHandler creates a hosted repository.
func (s *Server) createRepositoryHandler(w http.ResponseWriter, r *http.Request) {
	var req createRepositoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := security.ValidateRepositoryName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var description *string
	if clean := security.SanitizeDescription(req.Description); clean != "" {
		description = &clean
	}

	repo, err := s.DB.GetOrCreateRepository(req.Name, description, req.Composite)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create repository")
		return
	}

	if req.Atomic != nil {
		if err := s.DB.SetAtomicLoading(repo.ID, req.Atomic); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to store atomic loading setting")
			return
		}
		repo.Atomic = req.Atomic
	}

	writeJSON(w, http.StatusCreated, repo)
}

// uploadArtifactHandler accepts a multipart artifact upload and stores the
// blob under its sha256 digest.
func (s *Server) uploadArtifactHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	repo, err := s.DB.GetRepository(name)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Repository not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load repository")
		return
	}
	if repo.Composite {
		writeError(w, http.StatusBadRequest, "Cannot upload artifacts to a composite repository")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	artifactName := r.FormValue("name")
	version := r.FormValue("version")
	if err := security.ValidateArtifactName(artifactName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := security.ValidateVersion(version); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, _, err := r.FormFile("blob")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing blob file")
		return
	}
	defer file.Close()

	// Stream to a temp file while hashing, then move into place under the
	// digest so blobs are content-addressed.
	blobDir := filepath.Join(s.Config.StoragePath, "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "Storage unavailable")
		return
	}

	tmp, err := os.CreateTemp(blobDir, "upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Storage unavailable")
		return
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), file)
	tmp.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store blob")
		return
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	blobPath := filepath.Join("blobs", digest)
	if err := os.Rename(tmp.Name(), filepath.Join(s.Config.StoragePath, blobPath)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store blob")
		return
	}

	artifact, err := s.DB.CreateArtifact(db.Artifact{
		RepositoryID: repo.ID,
		Name:         artifactName,
		Version:      version,
		SHA256:       digest,
		SizeBytes:    size,
		BlobPath:     blobPath,
	})
	if err != nil {
		writeError(w, http.StatusConflict, "Artifact already exists or could not be recorded")
		return
	}

	writeJSON(w, http.StatusCreated, artifact)
}

type addChildRequest struct {
	ChildURI string `json:"child_uri"`
}

// addChildHandler appends a child to a composite repository.
func (s *Server) addChildHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	repo, err := s.DB.GetRepository(name)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Repository not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load repository")
		return
	}
	if !repo.Composite {
		writeError(w, http.StatusBadRequest, "Repository is not composite")
		return
	}

	var req addChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := security.ValidateChildURI(req.ChildURI); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	child, err := s.DB.AddCompositeChild(repo.ID, req.ChildURI)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add child")
		return
	}

	writeJSON(w, http.StatusCreated, child)
}
