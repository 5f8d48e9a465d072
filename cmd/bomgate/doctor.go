package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantmind-br/bomgate/internal/config"
	gitstrategy "github.com/quantmind-br/bomgate/internal/strategies/git"
	"github.com/quantmind-br/bomgate/internal/workspace"
)

var (
	// Dependencies for testing
	execLookPath = exec.LookPath
	httpClient   = &http.Client{Timeout: 5 * time.Second}
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system dependencies",
	Long:  "Verifies that the generator, git, the workspace and the GitHub API are usable with the current configuration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if !runDoctor(cmd.Context(), cmd.OutOrStdout(), cfg) {
			return fmt.Errorf("some checks failed")
		}
		return nil
	},
}

// runDoctor prints one line per check and reports whether all critical
// checks passed
func runDoctor(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	fmt.Fprintln(out, "Checking system dependencies...")
	allPassed := true

	// Check 1: Generator
	fmt.Fprint(out, "  Generator: ")
	if path, err := execLookPath(cfg.Generator.Command); err == nil {
		fmt.Fprintf(out, "OK (%s)\n", path)
	} else {
		fmt.Fprintf(out, "NOT FOUND (%s)\n", cfg.Generator.Command)
		allPassed = false
	}

	// Check 2: Git binary, only needed by the CLI backend
	fmt.Fprint(out, "  Git: ")
	switch {
	case gitstrategy.Backend(cfg.Clone.Backend) == gitstrategy.BackendGoGit:
		fmt.Fprintln(out, "SKIPPED (go-git backend)")
	default:
		if path, err := execLookPath(cfg.Clone.GitBinary); err == nil {
			fmt.Fprintf(out, "OK (%s)\n", path)
		} else {
			fmt.Fprintf(out, "NOT FOUND (%s)\n", cfg.Clone.GitBinary)
			allPassed = false
		}
	}

	// Check 3: Workspace
	fmt.Fprint(out, "  Workspace: ")
	if root, err := checkWorkspace(cfg.Workspace.Directory); err == nil {
		fmt.Fprintf(out, "OK (%s)\n", root)
	} else {
		fmt.Fprintf(out, "FAILED (%v)\n", err)
		allPassed = false
	}

	// Check 4: GitHub API, only needed for private repositories
	fmt.Fprint(out, "  GitHub API: ")
	if checkURL(ctx, cfg.GitHub.APIURL) {
		fmt.Fprintln(out, "OK")
	} else {
		fmt.Fprintln(out, "UNREACHABLE (private repositories will fail)")
	}

	fmt.Fprintln(out)
	if allPassed {
		fmt.Fprintln(out, "All critical checks passed!")
	} else {
		fmt.Fprintln(out, "Some checks failed. Please resolve the issues above.")
	}
	return allPassed
}

// checkWorkspace verifies that a directory can be created and removed under
// the workspace root
func checkWorkspace(path string) (string, error) {
	root, err := workspace.NewRoot(path)
	if err != nil {
		return "", err
	}
	dir, err := root.NewDir("doctor")
	if err != nil {
		return "", err
	}
	if err := dir.Remove(); err != nil {
		return "", err
	}
	return root.Path(), nil
}

// checkURL reports whether url answers with a non-5xx status
func checkURL(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
