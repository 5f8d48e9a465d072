package domain

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// QueryParams are the query string keys copied into request options
var QueryParams = []string{
	"type",
	"multiProject",
	"requiredOnly",
	"noBabel",
	"installDeps",
	"projectId",
	"projectName",
	"projectGroup",
	"projectVersion",
	"parentUUID",
	"serverUrl",
	"apiKey",
	"specVersion",
	"filter",
	"only",
	"autoCompositions",
	"git",
	"gitBranch",
	"active",
	"private",
	"owner",
	"repository",
	"token",
}

// RequestOptions is the merged parameter set for one /sbom request
type RequestOptions struct {
	Locator string `mapstructure:"-"`

	Git        bool   `mapstructure:"git"`
	Private    bool   `mapstructure:"private"`
	Repository string `mapstructure:"repository"`
	Owner      string `mapstructure:"owner"`
	Token      string `mapstructure:"token"`
	GitBranch  string `mapstructure:"gitBranch"`

	ProjectType      []string `mapstructure:"projectType"`
	MultiProject     bool     `mapstructure:"multiProject"`
	RequiredOnly     bool     `mapstructure:"requiredOnly"`
	NoBabel          bool     `mapstructure:"noBabel"`
	InstallDeps      bool     `mapstructure:"installDeps"`
	ProjectID        string   `mapstructure:"projectId"`
	ProjectName      string   `mapstructure:"projectName"`
	ProjectGroup     string   `mapstructure:"projectGroup"`
	ProjectVersion   string   `mapstructure:"projectVersion"`
	ParentUUID       string   `mapstructure:"parentUUID"`
	SpecVersion      string   `mapstructure:"specVersion"`
	Filter           []string `mapstructure:"filter"`
	Only             []string `mapstructure:"only"`
	AutoCompositions bool     `mapstructure:"autoCompositions"`
	Active           bool     `mapstructure:"active"`

	ServerURL string `mapstructure:"serverUrl"`
	APIKey    string `mapstructure:"apiKey"`
}

// NeedsPostProcessing reports whether any filter option is set
func (o *RequestOptions) NeedsPostProcessing() bool {
	return o.RequiredOnly || len(o.Filter) > 0 || len(o.Only) > 0
}

// ShouldPublish reports whether both publishing coordinates are present
func (o *RequestOptions) ShouldPublish() bool {
	return o.ServerURL != "" && o.APIKey != ""
}

// MergeOptions layers defaults, then body, then non-empty recognized query
// values. Keys are folded to lower case so that "specVersion" from a body and
// "specversion" from a config file address the same option. "type" becomes
// "projecttype".
func MergeOptions(defaults, body map[string]any, query map[string]string) map[string]any {
	merged := make(map[string]any, len(defaults)+len(body)+len(query))
	for k, v := range defaults {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range body {
		merged[strings.ToLower(k)] = v
	}
	for _, param := range QueryParams {
		if v, ok := query[param]; ok && v != "" {
			merged[strings.ToLower(param)] = v
		}
	}

	if t, ok := merged["type"]; ok {
		merged["projecttype"] = t
		delete(merged, "type")
	}
	return merged
}

// DecodeRequestOptions converts a merged option map into RequestOptions.
// Values are weakly typed: "true" decodes to a bool, numbers to strings, and
// comma-separated strings to lists.
func DecodeRequestOptions(merged map[string]any) (RequestOptions, error) {
	var opts RequestOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return opts, err
	}
	if err := decoder.Decode(merged); err != nil {
		return opts, fmt.Errorf("invalid request options: %w", err)
	}

	opts.ProjectType = compact(opts.ProjectType)
	opts.Filter = compact(opts.Filter)
	opts.Only = compact(opts.Only)
	return opts, nil
}

// Locator returns the first non-empty of query path, query url, body path,
// body url.
func Locator(query map[string]string, body map[string]any) string {
	for _, key := range []string{"path", "url"} {
		if v := query[key]; v != "" {
			return v
		}
	}
	for _, key := range []string{"path", "url"} {
		if v, ok := body[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
