package cmd

import (
	"os"

	"github.com/spf13/cobra"

	cfg "github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  `Prints the configuration after defaults, the config file and FACECAP_* environment variables are applied.`,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	c, err := cfg.Load(configPath)
	if err != nil {
		return err
	}
	return cfg.Dump(os.Stdout, c)
}
