package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gitstrategy "github.com/quantmind-br/bomgate/internal/strategies/git"
	"github.com/quantmind-br/bomgate/internal/utils"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Clone     CloneConfig     `mapstructure:"clone" yaml:"clone"`
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	Publish   PublishConfig   `mapstructure:"publish" yaml:"publish"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	// Defaults is the option set every request is merged over
	Defaults map[string]any `mapstructure:"defaults" yaml:"defaults"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	TimeoutMS    int    `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// Timeout returns the request timeout
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// PruneAge returns the startup pruning age, or zero when pruning is disabled
func (c *Config) PruneAge() time.Duration {
	switch {
	case c.Workspace.PruneAfter < 0:
		return 0
	case c.Workspace.PruneAfter == 0:
		return 2 * c.Server.Timeout()
	}
	return c.Workspace.PruneAfter
}

// WorkspaceConfig contains ephemeral storage settings
type WorkspaceConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	// PruneAfter is the age past which leftovers are removed at startup.
	// Zero means twice the request timeout; negative disables pruning.
	PruneAfter time.Duration `mapstructure:"prune_after" yaml:"prune_after"`
}

// CloneConfig contains public clone settings
type CloneConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"`
	GitBinary string `mapstructure:"git_binary" yaml:"git_binary"`
}

// GitHubConfig contains private archive download settings
type GitHubConfig struct {
	APIURL     string        `mapstructure:"api_url" yaml:"api_url"`
	APIVersion string        `mapstructure:"api_version" yaml:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// GeneratorConfig contains BOM generator settings
type GeneratorConfig struct {
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	Env     []string `mapstructure:"env" yaml:"env"`
}

// PublishConfig contains Dependency-Track upload settings
type PublishConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate repairs out-of-range values and rejects unusable ones
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		c.Server.Port = DefaultPort
	}
	if c.Server.TimeoutMS < 1 {
		c.Server.TimeoutMS = DefaultTimeoutMS
	}
	if c.Server.MaxBodyBytes < 1 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	c.Workspace.Directory = utils.ExpandPath(c.Workspace.Directory)
	c.Clone.GitBinary = utils.ExpandPath(c.Clone.GitBinary)
	c.Generator.Command = utils.ExpandPath(c.Generator.Command)
	if c.Clone.Backend == "" {
		c.Clone.Backend = DefaultCloneBackend
	} else if !gitstrategy.IsValidBackend(c.Clone.Backend) {
		return fmt.Errorf("invalid clone.backend %q: must be %q or %q",
			c.Clone.Backend, gitstrategy.BackendCLI, gitstrategy.BackendGoGit)
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = gitstrategy.DefaultAPIURL
	}
	if c.GitHub.APIVersion == "" {
		c.GitHub.APIVersion = gitstrategy.DefaultAPIVersion
	}
	if c.GitHub.Timeout < time.Second {
		c.GitHub.Timeout = DefaultGitHubTimeout
	}
	if c.Generator.Command == "" {
		c.Generator.Command = DefaultGeneratorCommand
	}
	if c.Publish.Timeout < time.Second {
		c.Publish.Timeout = DefaultPublishTimeout
	}
	if c.Publish.MaxRetries < 0 {
		c.Publish.MaxRetries = DefaultPublishMaxRetries
	}
	if c.Logging.Format != "json" && c.Logging.Format != "pretty" {
		c.Logging.Format = DefaultLogFormat
	}
	return nil
}

// redactedKeys are request defaults that hold credentials
var redactedKeys = map[string]bool{
	"token":  true,
	"apikey": true,
}

// YAML renders the configuration with credentials masked
func (c *Config) YAML() ([]byte, error) {
	out := *c
	if len(c.Defaults) > 0 {
		out.Defaults = make(map[string]any, len(c.Defaults))
		for k, v := range c.Defaults {
			if redactedKeys[strings.ToLower(k)] {
				v = "********"
			}
			out.Defaults[k] = v
		}
	}
	return yaml.Marshal(&out)
}
