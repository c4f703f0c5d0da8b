package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shelfd/shelfd/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample shelfd configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/shelfd/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  shelfd init

  # Initialize with custom path
  shelfd init --config /etc/shelfd/config.yaml

  # Force overwrite existing config
  shelfd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: shelfd start")
	fmt.Printf("  3. Or specify custom config: shelfd start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  Share access tokens are signed with share.token_secret. For")
	fmt.Println("  production, generate a secret and set it via the environment:")
	fmt.Println("    export SHELFD_SHARE_TOKEN_SECRET=$(openssl rand -hex 32)")

	return nil
}
