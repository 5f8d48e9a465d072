// Package generator runs an external BOM generator over a source tree.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/utils"
	"github.com/quantmind-br/bomgate/internal/workspace"
)

// Ensure CommandGenerator implements domain.Generator
var _ domain.Generator = (*CommandGenerator)(nil)

// DefaultCommand is the generator executable
const DefaultCommand = "cdxgen"

const outputName = "bom.json"

// CommandGenerator invokes a cdxgen-compatible command line tool
type CommandGenerator struct {
	command string
	args    []string
	env     []string
	root    *workspace.Root
	logger  *utils.Logger
}

// Options contains options for creating a CommandGenerator
type Options struct {
	Command string
	// Args are inserted before the per-request flags
	Args []string
	// Env entries (KEY=VALUE) are added to the inherited environment
	Env []string
	// Root receives the per-run output directory
	Root   *workspace.Root
	Logger *utils.Logger
}

// New creates a CommandGenerator
func New(opts Options) *CommandGenerator {
	command := opts.Command
	if command == "" {
		command = DefaultCommand
	}
	return &CommandGenerator{
		command: command,
		args:    opts.Args,
		env:     opts.Env,
		root:    opts.Root,
		logger:  opts.Logger.OrNop().WithComponent("generator"),
	}
}

// BuildArgs returns the generator arguments for one request. Filtering
// options are left to the post-processor.
func BuildArgs(outputPath, sourcePath string, opts domain.RequestOptions) []string {
	args := []string{"-o", outputPath}
	for _, t := range opts.ProjectType {
		args = append(args, "-t", t)
	}
	if opts.MultiProject {
		args = append(args, "-r")
	}
	if opts.NoBabel {
		args = append(args, "--no-babel")
	}
	if opts.InstallDeps {
		args = append(args, "--install-deps")
	}
	if opts.ProjectName != "" {
		args = append(args, "--project-name", opts.ProjectName)
	}
	if opts.ProjectGroup != "" {
		args = append(args, "--project-group", opts.ProjectGroup)
	}
	if opts.ProjectVersion != "" {
		args = append(args, "--project-version", opts.ProjectVersion)
	}
	if opts.SpecVersion != "" {
		args = append(args, "--spec-version", opts.SpecVersion)
	}
	if opts.AutoCompositions {
		args = append(args, "--auto-compositions")
	}
	return append(args, "--", sourcePath)
}

// Generate runs the command against sourcePath. A missing or empty output
// file means nothing was found and yields a nil result. An unreadable
// sourcePath is a NotFoundError and the command is not run.
func (g *CommandGenerator) Generate(ctx context.Context, sourcePath string, opts domain.RequestOptions) (*domain.BomResult, error) {
	if err := checkReadable(sourcePath); err != nil {
		return nil, &domain.NotFoundError{Path: sourcePath, Err: err}
	}

	outputPath, cleanup, err := g.outputPath()
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer cleanup()

	args := append(append([]string{}, g.args...), BuildArgs(outputPath, sourcePath, opts)...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.command, args...)
	cmd.Stderr = &stderr
	cmd.Env = append(cmd.Environ(), g.env...)

	g.logger.Info().Strs("types", opts.ProjectType).Msg("Generating BOM")

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &domain.GenerationError{ExitCode: exitCode, Stderr: tail(stderr.String(), 4096), Err: err}
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read generator output: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return &domain.BomResult{Raw: data}, nil
}

// checkReadable opens path to confirm it exists and can be read
func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// outputPath returns where the generator writes its document, inside a
// workspace directory of its own, and the func that removes that directory
func (g *CommandGenerator) outputPath() (string, func(), error) {
	if g.root == nil {
		dir, err := os.MkdirTemp("", "bom-*")
		if err != nil {
			return "", nil, err
		}
		return filepath.Join(dir, outputName), func() { _ = os.RemoveAll(dir) }, nil
	}

	dir, err := g.root.NewDir("bom")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := dir.Remove(); err != nil {
			g.logger.Warn().Err(err).Str("dir", dir.Name()).Msg("Failed to remove generator output")
		}
	}
	return filepath.Join(dir.Path(), outputName), cleanup, nil
}

// tail keeps the last n bytes of s
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
