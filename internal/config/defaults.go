package config

import (
	"os"
	"path/filepath"
	"time"

	gitstrategy "github.com/quantmind-br/bomgate/internal/strategies/git"
)

// Default values
const (
	// Server defaults
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 9090
	DefaultTimeoutMS    = 600000
	DefaultMaxBodyBytes = 1 << 20

	// Clone defaults
	DefaultCloneBackend = "cli"
	DefaultGitBinary    = "git"

	// GitHub defaults
	DefaultGitHubTimeout = 10 * time.Minute

	// Generator defaults
	DefaultGeneratorCommand = "cdxgen"

	// Publish defaults
	DefaultPublishTimeout         = 5 * time.Minute
	DefaultPublishMaxRetries      = 3
	DefaultPublishInitialInterval = 1 * time.Second
	DefaultPublishMaxInterval     = 30 * time.Second

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// EnvPrefix is the prefix of every configuration environment variable
const EnvPrefix = "BOMGATE"

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bomgate"
	}
	return filepath.Join(home, ".bomgate")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultWorkspaceDir returns the ephemeral storage root used when none is
// configured
func DefaultWorkspaceDir() string {
	return filepath.Join(os.TempDir(), "bomgate")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			TimeoutMS:    DefaultTimeoutMS,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Workspace: WorkspaceConfig{
			Directory: DefaultWorkspaceDir(),
		},
		Clone: CloneConfig{
			Backend:   DefaultCloneBackend,
			GitBinary: DefaultGitBinary,
		},
		GitHub: GitHubConfig{
			APIURL:     gitstrategy.DefaultAPIURL,
			APIVersion: gitstrategy.DefaultAPIVersion,
			Timeout:    DefaultGitHubTimeout,
		},
		Generator: GeneratorConfig{
			Command: DefaultGeneratorCommand,
		},
		Publish: PublishConfig{
			Timeout:         DefaultPublishTimeout,
			MaxRetries:      DefaultPublishMaxRetries,
			InitialInterval: DefaultPublishInitialInterval,
			MaxInterval:     DefaultPublishMaxInterval,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Defaults: map[string]any{},
	}
}
