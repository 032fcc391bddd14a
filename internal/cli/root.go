// Package cli provides the command-line interface for drivectl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/internxt/drivectl/internal/config"
	"github.com/internxt/drivectl/internal/logging"
	"github.com/internxt/drivectl/internal/version"
)

var (
	// Global flags
	cfgFile    string
	apiKey     string
	driveURL   string
	networkURL string
	logLevel   string
	logFormat  string
	verbose    bool

	// Global logger
	logger *logging.Logger

	// Configuration loaded in PersistentPreRunE, before validation.
	loadedCfg *config.Config

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drivectl",
		Short: "Rate-limit aware client for the Internxt Drive and Network APIs",
		Long: `drivectl ` + version.Version + ` - Built: ` + version.BuildTime + `
Talks to the Internxt Drive and Network APIs through an adaptive rate-limit
layer: requests slow down as the advertised quota runs low, and 429 responses
are retried after the server's retry-after directive.

Configuration is read from ` + config.DefaultConfigPath() + `,
DRIVECTL_* environment variables, a .env file and command-line flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			cfg.MergeWithFlags(flagOverrides())
			loadedCfg = cfg

			logger = newLogger(cfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Internxt API token (overrides config and environment)")
	rootCmd.PersistentFlags().StringVar(&driveURL, "drive-url", "", "Drive API base URL")
	rootCmd.PersistentFlags().StringVar(&networkURL, "network-url", "", "Network API base URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: cli or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (same as --log-level debug)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for drivectl.

QUICK TEST (temporary, current session only):
  source <(drivectl completion bash)
  source <(drivectl completion zsh)
  drivectl completion fish | source`,
	}
	completionCmd.AddCommand(
		&cobra.Command{
			Use:   "bash",
			Short: "Generate bash completion script",
			RunE: func(cmd *cobra.Command, args []string) error {
				return cmd.Root().GenBashCompletion(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "zsh",
			Short: "Generate zsh completion script",
			RunE: func(cmd *cobra.Command, args []string) error {
				return cmd.Root().GenZshCompletion(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "fish",
			Short: "Generate fish completion script",
			RunE: func(cmd *cobra.Command, args []string) error {
				return cmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
			},
		},
		&cobra.Command{
			Use:   "powershell",
			Short: "Generate PowerShell completion script",
			RunE: func(cmd *cobra.Command, args []string) error {
				return cmd.Root().GenPowerShellCompletion(cmd.OutOrStdout())
			},
		},
	)
	rootCmd.AddCommand(completionCmd)

	// Disable default completion command (we're adding our own above)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newKeyCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func flagOverrides() config.FlagOverrides {
	level := logLevel
	if verbose && level == "" {
		level = "debug"
	}
	return config.FlagOverrides{
		APIKey:     apiKey,
		DriveURL:   driveURL,
		NetworkURL: networkURL,
		LogLevel:   level,
		LogFormat:  logFormat,
	}
}

// newLogger builds the process logger from cfg and sets the global level.
func newLogger(cfg *config.Config) *logging.Logger {
	l := logging.NewLogger(cfg.LogFormat)
	if cfg.LogFile != "" {
		l.AddFileSink(logging.FileOptions{
			Path:       config.ResolveLogFile(cfg.LogFile),
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		})
	}
	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	return l
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
