package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/csvsource/internal/config"
	"github.com/zjrosen/csvsource/internal/log"
	"github.com/zjrosen/csvsource/internal/paths"
	"github.com/zjrosen/csvsource/internal/tracing"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       = config.Defaults()

	traceProvider *tracing.Provider
	logCleanup    func()
)

var rootCmd = &cobra.Command{
	Use:   "csvsource",
	Short: "Query CSV text with attribute selection, filters and pagination",
	Long: `csvsource registers CSV text and answers structured queries against it:
select attributes, filter rows with equality clauses (AND within a --filter,
OR across several) and paginate with --page/--limit.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .csvsource/config.yaml, then ~/.config/csvsource/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also CSVSOURCE_DEBUG=1)")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("parser.delimiter", defaults.Parser.Delimiter)
	viper.SetDefault("parser.quote", defaults.Parser.Quote)
	viper.SetDefault("parser.trim", defaults.Parser.Trim)
	viper.SetDefault("parser.skip_empty_lines", defaults.Parser.SkipEmptyLines)
	viper.SetDefault("output.format", defaults.Output.Format)
	viper.SetDefault("output.indent", defaults.Output.Indent)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)

	viper.SetEnvPrefix("CSVSOURCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(paths.ResolveConfigFile(cfgFile))
	} else {
		// Config lookup order:
		// 1. .csvsource/config.yaml (current directory, redirect aware)
		// 2. ~/.config/csvsource/config.yaml (user config)
		local := paths.ResolveConfigFile("")
		if _, err := os.Stat(local); err == nil {
			viper.SetConfigFile(local)
		} else if dir := paths.UserConfigDir(); dir != "" {
			viper.AddConfigPath(dir)
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file is fine; 'csvsource config init' writes one.
	_ = viper.ReadInConfig()
	_ = viper.Unmarshal(&cfg)
}

// setupRuntime validates the loaded config, then starts logging and tracing.
func setupRuntime(cmd *cobra.Command, _ []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if os.Getenv("CSVSOURCE_DEBUG") != "" || debugFlag || cfg.Log.Enabled {
		if cfg.Log.Path != "" {
			cleanup, err := log.Init(cfg.Log.Path)
			if err != nil {
				return fmt.Errorf("initializing logging: %w", err)
			}
			logCleanup = cleanup
		} else {
			log.InitWriter(cmd.ErrOrStderr())
		}
		if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
			log.SetMinLevel(level)
		}
		log.Info(log.CatCLI, "csvsource starting", "command", cmd.Name(), "config", viper.ConfigFileUsed())
	}

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	traceProvider = provider
	return nil
}

func shutdownRuntime() {
	if traceProvider != nil {
		if err := traceProvider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatCLI, "Trace shutdown failed", err)
		}
		traceProvider = nil
	}
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	log.Reset()
}

// Execute runs the root command
func Execute() error {
	defer shutdownRuntime()
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
