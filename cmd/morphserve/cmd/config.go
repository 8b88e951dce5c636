package cmd

import (
	"fmt"

	"github.com/bastiangx/morphserve/pkg/config"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or reset morphserve.toml",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, path, err := config.LoadConfigWithPriority(cfgFile)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), config.GetActiveConfigPath(path))
		return err
	},
}

var configRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Overwrite the default config file with built-in defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RebuildConfigFile(); err != nil {
			return err
		}
		path, err := config.GetDefaultConfigPath()
		if err != nil {
			return err
		}
		log.Infof("Rebuilt %s", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configRebuildCmd)
	rootCmd.AddCommand(configCmd)
}
