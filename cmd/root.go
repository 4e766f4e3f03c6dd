package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/crashlens/internal/config"
	"github.com/KaramelBytes/crashlens/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logLevel  string
	logFormat string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "crashlens",
	Short: "crashlens: explore incident datasets and rank contributing factors",
	Long: `crashlens loads incident exports (CSV, TSV, XLSX), derives calendar and
time-of-day features, tallies and groups incidents, and fits a linear model of
group counts to rank the factors that move incident volume.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.crashlens/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace|debug|info|warn|error|disabled (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console|json (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	} else {
		cfg = c
	}
	initLogging()
}

// effectiveConfig returns the loaded config, or built-in defaults when none
// could be loaded.
func effectiveConfig() *cfgpkg.Global {
	if cfg != nil {
		return cfg
	}
	return cfgpkg.Defaults()
}

func initLogging() {
	c := effectiveConfig()
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	if logLevel != "" {
		if !logging.ValidLevel(logLevel) {
			fmt.Fprintf(os.Stderr, "⚠ Warning: unknown --log-level %q, using %s\n", logLevel, lc.Level)
		} else {
			lc.Level = logLevel
		}
	}
	if logFormat != "" {
		lc.Format = logFormat
	}
	if debug {
		lc.Level = "debug"
		lc.Caller = true
	}
	logging.Init(lc)
	logging.Debug().Str("config", cfgFile).Str("level", lc.Level).Msg("logging initialized")
}
