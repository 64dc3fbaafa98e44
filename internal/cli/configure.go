package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sojinmm/lux-sub007/internal/config"
)

var configureWrite bool

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Show or initialize the daemon configuration",
	Long: `Print the effective configuration after defaults and overrides.
With --write, save a starter config file to the config path.`,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().BoolVar(&configureWrite, "write", false, "write the effective config to the config path")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if configureWrite {
		if err := loader.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", loader.Path())
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
	return nil
}
