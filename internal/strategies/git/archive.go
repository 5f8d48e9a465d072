package git

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/utils"
	"github.com/quantmind-br/bomgate/internal/workspace"
)

// ArchiveFetcher downloads private repository tarballs through the GitHub API
type ArchiveFetcher struct {
	httpClient *http.Client
	apiURL     string
	apiVersion string
	logger     *utils.Logger
}

type ArchiveFetcherOptions struct {
	HTTPClient *http.Client
	APIURL     string
	APIVersion string
	Logger     *utils.Logger
}

func NewArchiveFetcher(opts ArchiveFetcherOptions) *ArchiveFetcher {
	client := opts.HTTPClient
	if client == nil {
		client = createDefaultHTTPClient()
	}
	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &ArchiveFetcher{
		httpClient: client,
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiVersion: apiVersion,
		logger:     opts.Logger.OrNop(),
	}
}

func (f *ArchiveFetcher) Name() string {
	return "archive"
}

// BuildTarballURL returns the API URL for the repository tarball at ref
func (f *ArchiveFetcher) BuildTarballURL(owner, repository, ref string) string {
	return fmt.Sprintf("%s/repos/%s/%s/tarball/%s",
		f.apiURL, url.PathEscape(owner), url.PathEscape(repository), url.PathEscape(ref))
}

// FetchArchive downloads the tarball for (owner, repository, branch) and
// extracts it into dir. It returns only after extraction has finished.
func (f *ArchiveFetcher) FetchArchive(ctx context.Context, repository, owner, token, branch string, dir *workspace.Dir) error {
	if branch == "" {
		branch = DefaultBranch
	}
	tarballURL := f.BuildTarballURL(owner, repository, branch)
	f.logger.Info().
		Str("owner", owner).
		Str("repository", repository).
		Str("ref", branch).
		Str("dir", dir.Name()).
		Msg("Downloading repository archive")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		return domain.NewFetchError(tarballURL, 0, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", f.apiVersion)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.NewFetchError(tarballURL, 0, fmt.Errorf("download request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		return domain.NewFetchError(tarballURL, resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}

	return f.extract(ctx, resp.Body, dir)
}

// extract decompresses the gzip stream into a .tar file inside dir, then
// unpacks that file into dir and removes it. Nothing is returned to the
// caller before extraction has finished.
func (f *ArchiveFetcher) extract(ctx context.Context, body io.Reader, dir *workspace.Dir) error {
	tarFile, err := os.CreateTemp(dir.Path(), ".archive-*.tar")
	if err != nil {
		return &domain.ExtractionError{Archive: dir.Name(), Err: err}
	}
	tarPath := tarFile.Name()
	defer os.Remove(tarPath)

	if err := decompress(tarFile, body); err != nil {
		tarFile.Close()
		return &domain.ExtractionError{Archive: dir.Name(), Err: err}
	}
	if err := tarFile.Close(); err != nil {
		return &domain.ExtractionError{Archive: dir.Name(), Err: err}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		in, err := os.Open(tarPath)
		if err != nil {
			return err
		}
		defer in.Close()
		return ExtractTar(&contextReader{ctx: gctx, r: in}, dir.Path())
	})
	if err := g.Wait(); err != nil {
		return &domain.ExtractionError{Archive: dir.Name(), Err: err}
	}

	f.logger.Debug().Str("dir", dir.Name()).Msg("Extraction complete")
	return nil
}

// decompress writes the gunzipped body to w
func decompress(w io.Writer, body io.Reader) error {
	gzr, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("gzip reader failed: %w", err)
	}
	defer gzr.Close()

	if _, err := io.Copy(w, gzr); err != nil {
		return fmt.Errorf("decompress failed: %w", err)
	}
	return nil
}

// contextReader stops reading once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// stripTopDir drops the first path component of an archive entry name
func stripTopDir(name string) (string, bool) {
	parts := strings.SplitN(filepath.ToSlash(name), "/", 2)
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	rel := filepath.FromSlash(parts[1])
	return rel, filepath.IsLocal(rel)
}

// ExtractTar unpacks a tar stream into destDir, dropping the archive's
// top-level directory. Entries that would land outside destDir are skipped,
// as are links whose target resolves outside destDir.
func ExtractTar(r io.Reader, destDir string) error {
	realDest, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return fmt.Errorf("resolve destination failed: %w", err)
	}
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read failed: %w", err)
		}

		relativePath, ok := stripTopDir(header.Name)
		if !ok {
			continue
		}
		targetPath := filepath.Join(destDir, relativePath)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("mkdir failed: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("mkdir failed: %w", err)
			}

			file, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode).Perm()|0o600)
			if err != nil {
				return fmt.Errorf("create file failed: %w", err)
			}

			if _, err := io.Copy(file, tr); err != nil {
				file.Close()
				return fmt.Errorf("copy failed: %w", err)
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close failed: %w", err)
			}
		case tar.TypeSymlink:
			linkname := filepath.Clean(filepath.FromSlash(header.Linkname))
			if filepath.IsAbs(linkname) {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("mkdir failed: %w", err)
			}
			parent, err := filepath.EvalSymlinks(filepath.Dir(targetPath))
			if err != nil {
				return fmt.Errorf("resolve failed: %w", err)
			}
			if !isWithin(realDest, filepath.Join(parent, linkname)) {
				continue
			}
			if err := os.Symlink(linkname, targetPath); err != nil {
				return fmt.Errorf("symlink failed: %w", err)
			}
		case tar.TypeLink:
			source, ok := stripTopDir(header.Linkname)
			if !ok {
				continue
			}
			sourcePath := filepath.Join(destDir, source)
			if info, err := os.Lstat(sourcePath); err != nil || !info.Mode().IsRegular() {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("mkdir failed: %w", err)
			}
			if err := os.Link(sourcePath, targetPath); err != nil {
				return fmt.Errorf("hardlink failed: %w", err)
			}
		}
	}

	return nil
}

// isWithin reports whether path is root or lies below it
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && (rel == "." || filepath.IsLocal(rel))
}

func createDefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Minute,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}
