package main

import (
	"github.com/spf13/cobra"

	"github.com/borevitzlab/go-eyepi/internal/config"
	"github.com/borevitzlab/go-eyepi/internal/daemon"
	"github.com/borevitzlab/go-eyepi/internal/logger"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the capture daemon",
		Long: `Run starts the scheduler and captures from every enabled camera on its
configured interval until interrupted. A default configuration file is
written if none exists yet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.EnsureFile(flagConfig); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Daemon)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			d := daemon.New(flagConfig, cfg, log, version)
			return d.Run(cmd.Context())
		},
	}
}
