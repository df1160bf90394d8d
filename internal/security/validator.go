package security

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// Repository names: lowercase alphanumeric with dashes, 2-64 chars
	repositoryNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

	// Artifact names allow dots for file-like identifiers
	artifactNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

	versionRegex = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+(-[a-zA-Z0-9.-]+)?$`)

	sha256Regex = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// ValidateRepositoryName checks a hosted repository name.
func ValidateRepositoryName(name string) error {
	if name == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if !repositoryNameRegex.MatchString(name) {
		return fmt.Errorf("invalid repository name: must be lowercase alphanumeric with dashes, 2-64 characters")
	}
	return nil
}

// ValidateArtifactName checks an artifact name.
func ValidateArtifactName(name string) error {
	if name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}
	if !artifactNameRegex.MatchString(name) {
		return fmt.Errorf("invalid artifact name: %s", name)
	}
	return nil
}

// ValidateVersion checks a semantic version string.
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if !versionRegex.MatchString(version) {
		return fmt.Errorf("invalid version: must be semantic (e.g. 1.2.3)")
	}
	return nil
}

// ValidateSHA256 checks a lowercase hex sha256 digest.
func ValidateSHA256(digest string) error {
	if !sha256Regex.MatchString(digest) {
		return fmt.Errorf("invalid sha256 digest")
	}
	return nil
}

// ValidateChildURI checks a composite child reference. Relative references
// must not escape the parent repository; absolute ones must be http(s).
func ValidateChildURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("child URI cannot be empty")
	}
	if strings.Contains(uri, "://") {
		u, err := url.Parse(uri)
		if err != nil {
			return fmt.Errorf("invalid child URI: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("child URI scheme must be http or https")
		}
		return nil
	}
	if strings.HasPrefix(uri, "/") || strings.Contains(uri, "..") {
		return fmt.Errorf("relative child URI must not escape the repository")
	}
	return nil
}

// SanitizeDescription strips all HTML from free-text descriptor fields.
func SanitizeDescription(text string) string {
	policy := bluemonday.StrictPolicy()
	return strings.TrimSpace(policy.Sanitize(text))
}
