package workspace

import (
	"path"
	"regexp"
	"strings"
)

// MaxPrefixLength bounds the human-readable part of a directory name
const MaxPrefixLength = 64

// invalidCharsRegex matches anything that is not safe in a directory name
var invalidCharsRegex = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// multipleDashesRegex matches runs of separators
var multipleDashesRegex = regexp.MustCompile(`[-_.]{2,}`)

// SanitizePrefix reduces s to a single safe path element
func SanitizePrefix(s string) string {
	s = invalidCharsRegex.ReplaceAllString(s, "-")
	s = multipleDashesRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-_.")

	if len(s) > MaxPrefixLength {
		s = strings.Trim(s[:MaxPrefixLength], "-_.")
	}
	if s == "" {
		s = "src"
	}
	return s
}

// PrefixFromURL derives a directory prefix from a repository URL's last
// path element, without a ".git" suffix.
func PrefixFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	// scp-like "git@host:owner/repo.git" has no slash before the owner
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	base := strings.TrimSuffix(path.Base(trimmed), ".git")
	return SanitizePrefix(base)
}

// PrefixFromRepo derives a directory prefix from owner and repository names
func PrefixFromRepo(owner, repository string) string {
	return SanitizePrefix(owner + "-" + repository)
}
