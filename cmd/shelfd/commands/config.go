package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfd/shelfd/internal/cli/output"
	"github.com/shelfd/shelfd/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage shelfd configuration files.

Use 'shelfd init' to create a new configuration file.

Subcommands:
  show      Display current configuration
  validate  Validate configuration file
  path      Print the default configuration file path`,
}

var configShowOutput string

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current shelfd configuration with defaults applied.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  shelfd config show

  # Show as JSON
  shelfd config show --output json

  # Show specific config file
  shelfd config show --config /etc/shelfd/config.yaml`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Load and validate the shelfd configuration, reporting the first
problem found.

Examples:
  # Validate the default config
  shelfd config validate

  # Validate a specific file
  shelfd config validate --config /etc/shelfd/config.yaml`,
	RunE: runConfigValidate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the default configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GetDefaultConfigPath())
	},
}

func init() {
	configShowCmd.Flags().StringVarP(&configShowOutput, "output", "o", "yaml", "Output format (yaml|json)")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(configShowOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.MustLoad(GetConfigFile()); err != nil {
		return err
	}

	fmt.Printf("Configuration is valid (%s)\n", getConfigSource(GetConfigFile()))
	return nil
}
