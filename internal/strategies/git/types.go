package git

// Backend selects how public repositories are cloned
type Backend string

const (
	BackendCLI   Backend = "cli"
	BackendGoGit Backend = "go-git"
)

// IsValidBackend reports whether b names a known backend
func IsValidBackend(b string) bool {
	switch Backend(b) {
	case BackendCLI, BackendGoGit:
		return true
	}
	return false
}

const (
	// DefaultBranch is the ref used for archive downloads when none is given
	DefaultBranch = "main"

	// DefaultAPIURL is the GitHub REST API base
	DefaultAPIURL = "https://api.github.com"

	// DefaultAPIVersion is sent as X-GitHub-Api-Version
	DefaultAPIVersion = "2022-11-28"
)
