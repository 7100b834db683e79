package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/linecheck/internal/config"
	"github.com/MeKo-Tech/linecheck/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// viperKeyAnnotation marks a flag with the configuration key it overrides.
const viperKeyAnnotation = "linecheck_config_key"

// skipConfigAnnotation marks commands that must work without a valid
// configuration.
const skipConfigAnnotation = "linecheck_skip_config"

var (
	// Configuration loader of the running command.
	configLoader *config.Loader
	// Configuration of the running command.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "linecheck",
	Short: "Label inspection for production line edge nodes",
	Long: `linecheck inspects product labels on a production line. Every cycle
captures a frame, detects label regions, reads printed fields and recovers the
printed barcode, then emits one structured result to the configured sinks.

Results are printed, pushed to websocket clients, and optionally uploaded to
an HTTP backend or a Redis stream.

Examples:
  linecheck run --interval 3s
  linecheck cycle frame.png --serial SN-0A1B2C3D
  linecheck serve --port 8080
  linecheck config init`,
	SilenceUsage:      true,
	Version:           version.String(),
	PersistentPreRunE: initCommand,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $XDG_CONFIG_HOME/linecheck, $HOME, /etc/linecheck)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("models-dir", "",
		"directory containing ONNX models (can also be set via LINECHECK_MODELS_DIR)")

	bindFlag(rootCmd.PersistentFlags(), "verbose", "verbose")
	bindFlag(rootCmd.PersistentFlags(), "log-level", "log_level")
	bindFlag(rootCmd.PersistentFlags(), "models-dir", "models_dir")

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
}

// bindFlag records that flag name overrides configuration key.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, viperKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// initCommand loads the configuration for the command being run and sets up
// structured logging.
func initCommand(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		level, _ := cmd.Flags().GetString("log-level")
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(cmd.ErrOrStderr(), level, verbose)
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	globalConfig = cfg
	setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.Verbose)
	if used := configLoader.GetConfigFileUsed(); used != "" {
		slog.Debug("Configuration loaded", "file", used)
	}
	return nil
}

// loadConfig builds a fresh loader whose flag layer is every annotated flag
// of cmd, including inherited persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[viperKeyAnnotation]
		if len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return nil, bindErr
	}
	configLoader = config.NewLoaderWith(v)
	return configLoader.LoadWithFile(cfgFile)
}

func setupLogging(w io.Writer, level string, verbose bool) {
	var logLevel slog.Level
	switch {
	case verbose:
		logLevel = slog.LevelDebug
	default:
		switch strings.ToLower(level) {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration of the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// GetConfigLoader returns the loader of the running command.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoaderWith(viper.New())
	}
	return configLoader
}
