// Package publisher uploads generated BOMs to a Dependency-Track server.
package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/fetcher"
	"github.com/quantmind-br/bomgate/internal/utils"
)

// Ensure DependencyTrack implements domain.Publisher
var _ domain.Publisher = (*DependencyTrack)(nil)

// BomPath is the Dependency-Track BOM upload endpoint
const BomPath = "/api/v1/bom"

// DefaultProjectVersion is sent when a project name is given without a version
const DefaultProjectVersion = "main"

// UploadRequest is the JSON body accepted by PUT /api/v1/bom
type UploadRequest struct {
	Project        string `json:"project,omitempty"`
	ProjectName    string `json:"projectName,omitempty"`
	ProjectVersion string `json:"projectVersion,omitempty"`
	ParentUUID     string `json:"parentUUID,omitempty"`
	AutoCreate     bool   `json:"autoCreate"`
	Bom            string `json:"bom"`
}

// DependencyTrack publishes BOMs with retries on transient failures
type DependencyTrack struct {
	httpClient *http.Client
	retrier    *fetcher.Retrier
	logger     *utils.Logger
}

// Options contains options for creating a DependencyTrack publisher
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Retrier    fetcher.RetrierOptions
	Logger     *utils.Logger
}

// New creates a DependencyTrack publisher
func New(opts Options) *DependencyTrack {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &DependencyTrack{
		httpClient: client,
		retrier:    fetcher.NewRetrier(opts.Retrier),
		logger:     opts.Logger.OrNop().WithComponent("publisher"),
	}
}

// BuildUploadRequest maps request options onto the upload body
func BuildUploadRequest(opts domain.RequestOptions, document []byte) UploadRequest {
	req := UploadRequest{
		Project:    opts.ProjectID,
		ParentUUID: opts.ParentUUID,
		AutoCreate: true,
		Bom:        base64.StdEncoding.EncodeToString(document),
	}
	if opts.ProjectID == "" {
		req.ProjectName = opts.ProjectName
		req.ProjectVersion = opts.ProjectVersion
		if req.ProjectName != "" && req.ProjectVersion == "" {
			req.ProjectVersion = DefaultProjectVersion
		}
	}
	return req
}

// Publish uploads document to opts.ServerURL using opts.APIKey
func (p *DependencyTrack) Publish(ctx context.Context, opts domain.RequestOptions, document []byte) error {
	if len(document) == 0 {
		return errors.New("no document to publish")
	}
	if opts.ProjectID == "" && opts.ProjectName == "" {
		return errors.New("projectId or projectName is required to publish")
	}

	body, err := json.Marshal(BuildUploadRequest(opts, document))
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(opts.ServerURL, "/") + BomPath

	return p.retrier.Retry(ctx, func() error {
		return p.put(ctx, endpoint, opts.APIKey, body)
	})
}

func (p *DependencyTrack) put(ctx context.Context, endpoint, apiKey string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &domain.RetryableError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		p.logger.Debug().Int("status", resp.StatusCode).Msg("BOM published")
		return nil
	}

	pubErr := &domain.PublishError{
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("%s", http.StatusText(resp.StatusCode)),
	}
	if fetcher.ShouldRetryStatus(resp.StatusCode) {
		return &domain.RetryableError{
			Err:        pubErr,
			RetryAfter: int(fetcher.ParseRetryAfter(resp.Header.Get("Retry-After")).Seconds()),
		}
	}
	return pubErr
}
