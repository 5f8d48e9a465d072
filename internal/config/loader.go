package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// legacyEnv maps config keys to environment variables honored for
// compatibility with existing cdxgen server deployments
var legacyEnv = map[string]string{
	"server.timeout_ms": "CDXGEN_SERVER_TIMEOUT_MS",
	"server.host":       "CDXGEN_SERVER_HOST",
	"server.port":       "CDXGEN_SERVER_PORT",
}

// Load loads configuration from file, environment, and defaults.
// Uses the global viper instance to access CLI flag bindings
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration into v and unmarshals it. Precedence from
// lowest to highest: defaults, config file, legacy env, BOMGATE_* env, flags.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// Environment variables (BOMGATE_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		// BindEnv checks names in order; the prefixed name wins
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Defaults == nil {
		cfg.Defaults = map[string]any{}
	}

	// Validate and apply defaults for invalid values
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.timeout_ms", d.Server.TimeoutMS)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)

	v.SetDefault("workspace.directory", d.Workspace.Directory)
	v.SetDefault("workspace.prune_after", d.Workspace.PruneAfter)

	v.SetDefault("clone.backend", d.Clone.Backend)
	v.SetDefault("clone.git_binary", d.Clone.GitBinary)

	v.SetDefault("github.api_url", d.GitHub.APIURL)
	v.SetDefault("github.api_version", d.GitHub.APIVersion)
	v.SetDefault("github.timeout", d.GitHub.Timeout)

	v.SetDefault("generator.command", d.Generator.Command)
	v.SetDefault("generator.args", []string{})
	v.SetDefault("generator.env", []string{})

	v.SetDefault("publish.timeout", d.Publish.Timeout)
	v.SetDefault("publish.max_retries", d.Publish.MaxRetries)
	v.SetDefault("publish.initial_interval", d.Publish.InitialInterval)
	v.SetDefault("publish.max_interval", d.Publish.MaxInterval)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
