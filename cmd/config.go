package cmd

import (
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agenticgokit/tracelens/internal/config"
)

// configCmd groups config file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the tracelens config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the current settings",
	Long: `Write a commented TOML config file holding the current connection settings.

The file defaults to $HOME/.tracelens.toml. Keys are only written with
--with-keys; keep them in the environment or a .env file otherwise.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		withKeys, _ := cmd.Flags().GetBool("with-keys")
		force, _ := cmd.Flags().GetBool("force")
		return usageOnValidation(cmd, initConfigFile(cmd, path, withKeys, force))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("with-keys", false, "Also write public_key and secret_key")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
}

func initConfigFile(cmd *cobra.Command, path string, withKeys, force bool) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".tracelens.toml")
	}

	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	cfg := config.DefaultFileConfig()
	cfg.Host = settings.Host
	cfg.ProjectID = settings.ProjectID
	cfg.Timeout = settings.Timeout.String()
	cfg.PageSize = settings.PageSize
	cfg.RateLimit = settings.RateLimit
	if withKeys {
		cfg.PublicKey = settings.Credentials.PublicKey
		cfg.SecretKey = settings.Credentials.SecretKey
	}

	if err := config.NewGenerator().GenerateConfig(cfg, path, force); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return nil
}
