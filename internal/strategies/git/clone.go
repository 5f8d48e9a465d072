package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/quantmind-br/bomgate/internal/domain"
	gitclient "github.com/quantmind-br/bomgate/internal/git"
	"github.com/quantmind-br/bomgate/internal/utils"
	"github.com/quantmind-br/bomgate/internal/workspace"
)

// ClonerOptions contains options shared by the clone backends
type ClonerOptions struct {
	// GitBinary is the executable used by the CLI backend
	GitBinary string
	// Client is the go-git client used by the go-git backend
	Client gitclient.Client
	Logger *utils.Logger
}

// NewCloner returns the clone backend named by backend
func NewCloner(backend Backend, opts ClonerOptions) (domain.Cloner, error) {
	switch backend {
	case BackendCLI, "":
		return NewCLICloner(opts), nil
	case BackendGoGit:
		return NewGoGitCloner(opts), nil
	default:
		return nil, fmt.Errorf("unknown clone backend: %q", backend)
	}
}

// CLICloner clones through a git subprocess
type CLICloner struct {
	binary string
	logger *utils.Logger
}

// NewCLICloner creates a CLICloner
func NewCLICloner(opts ClonerOptions) *CLICloner {
	binary := opts.GitBinary
	if binary == "" {
		binary = "git"
	}
	return &CLICloner{binary: binary, logger: opts.Logger.OrNop()}
}

func (c *CLICloner) Name() string {
	return string(BackendCLI)
}

// CloneArgs returns the git arguments for a shallow clone of url into dest
func CloneArgs(url, branch, dest string) []string {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	// "--" keeps a URL that starts with a dash from being read as an option
	return append(args, "--", url, dest)
}

func (c *CLICloner) Clone(ctx context.Context, url, branch string, dir *workspace.Dir) error {
	c.logger.Info().
		Str("dir", dir.Name()).
		Str("branch", branch).
		Msg("Cloning repository")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, CloneArgs(url, branch, dir.Path())...)
	cmd.Stderr = &stderr
	// Never prompt for credentials on a server
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &domain.CloneError{
			URL:      url,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return nil
}

// GoGitCloner clones in-process with go-git
type GoGitCloner struct {
	client gitclient.Client
	logger *utils.Logger
}

// NewGoGitCloner creates a GoGitCloner
func NewGoGitCloner(opts ClonerOptions) *GoGitCloner {
	client := opts.Client
	if client == nil {
		client = gitclient.NewClient()
	}
	return &GoGitCloner{client: client, logger: opts.Logger.OrNop()}
}

func (c *GoGitCloner) Name() string {
	return string(BackendGoGit)
}

func (c *GoGitCloner) Clone(ctx context.Context, url, branch string, dir *workspace.Dir) error {
	c.logger.Info().
		Str("dir", dir.Name()).
		Str("branch", branch).
		Msg("Cloning repository")

	if _, err := c.client.PlainCloneContext(ctx, dir.Path(), false, gitclient.ShallowCloneOptions(url, branch)); err != nil {
		return &domain.CloneError{URL: url, ExitCode: -1, Err: err}
	}
	return nil
}
