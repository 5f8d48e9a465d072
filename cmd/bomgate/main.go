package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quantmind-br/bomgate/internal/config"
	"github.com/quantmind-br/bomgate/internal/utils"
	"github.com/quantmind-br/bomgate/pkg/version"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bomgate",
	Short: "Serve CycloneDX SBOMs over HTTP",
	Long: `bomgate is an HTTP front-end for cdxgen. Each request names a local path,
a public git URL, or a private GitHub repository; bomgate materializes the
source, runs the generator, returns the BOM, optionally uploads it to
Dependency-Track, and removes any directory it created.`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.bomgate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Server flags
	rootCmd.PersistentFlags().String("host", config.DefaultHost, "Listen host")
	rootCmd.PersistentFlags().IntP("port", "p", config.DefaultPort, "Listen port")
	rootCmd.PersistentFlags().Int("timeout-ms", config.DefaultTimeoutMS, "Per-request timeout in milliseconds")
	rootCmd.PersistentFlags().Int64("max-body-bytes", config.DefaultMaxBodyBytes, "Maximum decoded request body size")

	// Acquisition flags
	rootCmd.PersistentFlags().String("workspace", "", "Directory for cloned and extracted sources")
	rootCmd.PersistentFlags().String("clone-backend", config.DefaultCloneBackend, "Public clone backend (cli or go-git)")

	// Generator flags
	rootCmd.PersistentFlags().String("generator", config.DefaultGeneratorCommand, "Generator command")

	// Observability flags
	rootCmd.PersistentFlags().Bool("metrics", true, "Serve Prometheus metrics on /metrics")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "Log format (pretty or json)")

	// Bind flags to viper
	_ = viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("server.timeout_ms", rootCmd.PersistentFlags().Lookup("timeout-ms"))
	_ = viper.BindPFlag("server.max_body_bytes", rootCmd.PersistentFlags().Lookup("max-body-bytes"))
	_ = viper.BindPFlag("workspace.directory", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("clone.backend", rootCmd.PersistentFlags().Lookup("clone-backend"))
	_ = viper.BindPFlag("generator.command", rootCmd.PersistentFlags().Lookup("generator"))
	_ = viper.BindPFlag("metrics.enabled", rootCmd.PersistentFlags().Lookup("metrics"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// loadConfig loads the configuration and the logger it describes
func loadConfig() (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := utils.NewLogger(utils.LoggerOptions{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Verbose: verbose,
	})
	return cfg, log, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Prints the merged configuration (defaults, config file, environment, flags) with credentials masked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return printConfig(cmd, cfg, viper.ConfigFileUsed())
	},
}

func printConfig(cmd *cobra.Command, cfg *config.Config, file string) error {
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if file != "" {
		fmt.Fprintf(out, "# %s\n", file)
	}
	_, err = out.Write(data)
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}
