package main

import (
	"fmt"

	"github.com/benaskins/ghostwire/internal/config"
	"github.com/benaskins/ghostwire/internal/service"
	"github.com/spf13/cobra"
)

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the WebDriver URL for the configured port",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Port == 0 {
			return fmt.Errorf("port is 0 in %s; it is assigned when the driver starts", configPath)
		}
		fmt.Fprintln(cmd.OutOrStdout(), service.URL(cfg.Host, cfg.Port))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(urlCmd)
}
