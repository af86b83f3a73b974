package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronspool/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			fmt.Printf("Configuration OK (%d targets)\n", len(cfg.Targets))
			for name, url := range cfg.Targets {
				fmt.Printf("  %s → %s\n", name, url)
			}
			return nil
		},
	})
	return cmd
}
