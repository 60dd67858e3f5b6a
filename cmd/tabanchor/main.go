package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/app"
	"github.com/ternarybob/tabanchor/internal/common"
)

var (
	// Command-line flags
	configFiles []string // later files override earlier ones
	logLevel    string
	dataDir     string
	quiet       bool

	// Global state
	config      *common.Config
	logger      arbor.ILogger
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "tabanchor",
	Short: "Extract PDF tables and replay anchor-value relationships",
	Long: `TabAnchor runs table extraction backends over PDF documents, normalizes their
output into one canonical grid, and replays saved anchor -> value relationships
against new documents of the same layout.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Badger data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the banner")

	rootCmd.AddCommand(
		extractCmd,
		compareCmd,
		recommendCmd,
		relationshipCmd,
		applyCmd,
		cacheCmd,
		versionCmd,
	)
}

func main() {
	defer common.RecoverWithCrashFile()

	common.LoadVersionFromFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	// PersistentPostRunE is skipped when a command fails
	_ = teardown(rootCmd, nil)

	if err != nil {
		stop()
		os.Exit(1)
	}
}

// setup runs the startup sequence (REQUIRED ORDER):
// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
// 2. Apply CLI overrides (highest priority)
// 3. Initialize logger
// 4. Print banner
// 5. Initialize application
func setup(cmd *cobra.Command, args []string) error {
	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("tabanchor.toml"); err == nil {
			configFiles = append(configFiles, "tabanchor.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		return err
	}

	common.ApplyFlagOverrides(config, backendFlag(cmd), logLevel, dataDir)

	logger = common.InitLogger(config)
	common.InstallCrashHandler("")

	common.PrintBanner(common.GetVersion(), quiet)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("badger_path", config.Storage.Badger.Path).
		Str("default_backend", config.Extraction.DefaultBackend).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")

	application, err = app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return err
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	return err
}

// backendFlag returns the --backend value when the command defines one
func backendFlag(cmd *cobra.Command) string {
	f := cmd.Flags().Lookup("backend")
	if f == nil || !f.Changed {
		return ""
	}
	return f.Value.String()
}

// fail logs err and returns it so cobra exits non-zero
func fail(err error, msg string) error {
	logger.Error().Err(err).Msg(msg)
	return fmt.Errorf("%s: %w", msg, err)
}
