package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/internxt/drivectl/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage drivectl configuration",
		Long: `Configuration management commands for drivectl.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for drivectl.

The configuration is saved as YAML to the --config path, or to the default
location shown by 'drivectl config path'. The proxy password is never saved;
supply it with DRIVECTL_PROXY_PASSWORD or at the prompt.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Printf("Configuration already exists at: %s\n", path)
					fmt.Println("Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg := config.DefaultConfig()
			if loadedCfg != nil {
				cfg = loadedCfg
			}

			fmt.Println("drivectl configuration setup")
			fmt.Println("============================")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)
			cfg.DriveURL = promptLine(reader, "Drive API URL", cfg.DriveURL)
			cfg.NetworkURL = promptLine(reader, "Network API URL", cfg.NetworkURL)

			if cfg.APIKey == "" {
				token, err := promptSecret("API token (leave empty to set later): ")
				switch {
				case errors.Is(err, errNotInteractive):
					cfg.APIKey = promptLine(reader, "API token", "")
				case err != nil:
					return err
				default:
					cfg.APIKey = token
				}
			}

			cfg.ProxyMode = promptLine(reader, "Proxy mode (no-proxy, system, basic, ntlm)", cfg.ProxyMode)
			if cfg.ProxyMode == config.ProxyModeBasic || cfg.ProxyMode == config.ProxyModeNTLM {
				cfg.ProxyHost = promptLine(reader, "Proxy host", cfg.ProxyHost)
				cfg.ProxyUser = promptLine(reader, "Proxy user", cfg.ProxyUser)
			}

			cfg.MergeWithFlags(config.FlagOverrides{})
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := config.Save(cfg, path); err != nil {
				return err
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after merging the config file, environment
variables and flags. Secrets are masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadedCfg
			if cfg == nil {
				cfg = config.DefaultConfig()
			}
			data, err := config.Marshal(cfg.Redacted())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", configPath())
			_, err = out.Write(data)
			return err
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), configPath())
			return nil
		},
	}
}
