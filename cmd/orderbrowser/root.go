package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pure-golang/orderbrowser/env"
	"github.com/pure-golang/orderbrowser/logger"
)

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "orderbrowser",
		Short:        "Purchase order mail drafting and mail relay",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				if err := os.Setenv(env.FileVariable, envFile); err != nil {
					return err
				}
			}

			var cfg logger.Config
			if err := env.InitConfig(&cfg); err != nil {
				return err
			}
			logger.InitDefault(cfg)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default .env)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newDraftCmd())
	root.AddCommand(newDestinationCmd())
	return root
}
