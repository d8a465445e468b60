package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stratege/internal/api"
	"stratege/internal/config"
	"stratege/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	apiURL     string
	timeout    time.Duration

	// Resolved in PersistentPreRunE
	cfg  *config.Config
	logs *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stratege",
	Short: "stratège - assistant de stratégie marketing",
	Long: `stratège guides you from a marketing scenario to a content plan:
pick a scenario, choose or create a configuration, select up to two
objectives and three targets, then generate the plan.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch interactive chat
		return runInteractiveChat(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "stratege.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (overrides config)")

	rootCmd.AddCommand(scenariosCmd)
	rootCmd.AddCommand(configurationsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(mockServerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration, applies flag overrides and builds the
// logger. The interactive chat owns the terminal, so it always logs to the
// configured file; other commands log to stderr.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if timeout > 0 {
		cfg.API.Timeout = timeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := cfg.Logging.Options()
	if cmd.HasParent() {
		opts.File = ""
		opts.Format = "console"
		if opts.Level == "" || opts.Level == "info" {
			opts.Level = "warn"
		}
	}
	if verbose {
		opts.Level = "debug"
	}
	logs, err = logging.New(opts)
	if err != nil {
		return err
	}
	logs.Get(logging.CategoryBoot).Debug("configuration loaded",
		zap.String("config", configPath),
		zap.String("api_url", cfg.API.BaseURL),
		zap.Duration("timeout", cfg.GetAPITimeout()))
	return nil
}

// newClient builds the backend client from the resolved configuration.
func newClient() (*api.Client, error) {
	return api.New(cfg.API.BaseURL, cfg.GetAPITimeout(), logs.Get(logging.CategoryAPI))
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
