package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovelabs/grove/internal/cli/prompt"
	"github.com/grovelabs/grove/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample grove configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/grove/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  grove init

  # Initialize with custom path
  grove init --config /etc/grove/config.yaml

  # Force overwrite existing config
  grove init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()
	configPath := configFile
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	// Confirm before clobbering an existing file unless forced.
	if _, err := os.Stat(configPath); err == nil && !initForce {
		overwrite, err := prompt.Confirm(
			fmt.Sprintf("Config file already exists at %s. Overwrite", configPath), false)
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("Aborted.")
			return nil
		}
		initForce = true
	}

	if err := config.InitConfigToPath(configPath, initForce); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to point at your pool")
	fmt.Println("  2. Start the churn side with: grove io")
	fmt.Println("  3. Start the snapshot side with: grove backup")
	fmt.Printf("  4. Or specify custom config: grove io --config %s\n", configPath)

	return nil
}
