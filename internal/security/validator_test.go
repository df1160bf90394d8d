package security

import (
	"strings"
	"testing"
)

func TestValidateRepositoryName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "central", false},
		{"valid with dashes", "team-releases-2", false},
		{"empty", "", true},
		{"uppercase", "Central", true},
		{"too short", "c", true},
		{"too long", strings.Repeat("a", 65), true},
		{"leading dash", "-repo", true},
		{"path traversal", "../etc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRepositoryName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRepositoryName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateArtifactName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"toolchain", false},
		{"toolchain-linux.tar.gz", false},
		{"Tool_2", false},
		{"", true},
		{".hidden", true},
		{"has space", true},
		{"has/slash", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateArtifactName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArtifactName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"1.0.0", false},
		{"2.10.3", false},
		{"1.0.0-rc.1", false},
		{"", true},
		{"1.0", true},
		{"v1.0.0", true},
		{"latest", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSHA256(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	if err := ValidateSHA256(valid); err != nil {
		t.Errorf("ValidateSHA256 rejected a valid digest: %v", err)
	}

	for _, bad := range []string{"", "abc", strings.Repeat("AB", 32), strings.Repeat("zz", 32)} {
		if err := ValidateSHA256(bad); err == nil {
			t.Errorf("ValidateSHA256(%q) accepted an invalid digest", bad)
		}
	}
}

func TestValidateChildURI(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "children/a/", false},
		{"absolute https", "https://other.example.com/b/", false},
		{"absolute http", "http://other.example.com/b/", false},
		{"empty", "", true},
		{"file scheme", "file:///etc/passwd", true},
		{"escapes repository", "../../other/", true},
		{"absolute path", "/etc/passwd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChildURI(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChildURI(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeDescription(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "A release repository", "A release repository"},
		{"strips script", `release <script>alert("x")</script>notes`, "release notes"},
		{"strips tags", "<b>bold</b> claim", "bold claim"},
		{"trims whitespace", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeDescription(tt.input); got != tt.want {
				t.Errorf("SanitizeDescription(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
