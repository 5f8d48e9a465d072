// Package git implements the repository acquisition backends used by the
// clone and archive strategies.
//
// Architecture:
//   - CLICloner: shallow clone through a `git` subprocess
//   - GoGitCloner: shallow clone in-process through go-git
//   - ArchiveFetcher: authenticated tarball download with concurrent
//     decompression and extraction
//
// Usage:
//
//	cloner, err := git.NewCloner(git.BackendCLI, git.ClonerOptions{Logger: logger})
//	err = cloner.Clone(ctx, "https://github.com/owner/repo.git", "", dir)
package git
