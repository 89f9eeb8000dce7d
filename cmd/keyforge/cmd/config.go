package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/runvoy/keyforge/internal/config"
	"github.com/runvoy/keyforge/internal/output"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the keyforge configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Long: `Write the effective configuration (defaults, then the existing file, then
KEYFORGE_* environment variables) to the config file so it can be edited.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := getConfigFromContext(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		path := configFile
		if path == "" {
			if path, err = config.GetConfigPath(); err != nil {
				return err
			}
		}

		if _, statErr := os.Stat(path); statErr == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
			return statErr
		}

		if err = config.Save(cfg, path); err != nil {
			return err
		}
		output.Successf("Configuration written to %s", output.Bold(path))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := getConfigFromContext(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error encoding config: %w", err)
		}
		_, err = fmt.Fprint(output.Stdout, string(data))
		return err
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
