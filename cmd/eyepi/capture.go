package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/borevitzlab/go-eyepi/internal/config"
	"github.com/borevitzlab/go-eyepi/internal/daemon"
	"github.com/borevitzlab/go-eyepi/internal/logger"
)

// pickTargets resolves which sources a capture invocation addresses. Naming
// a source works even when it is disabled in the config, since an explicit
// request on the command line outranks the enabled flag.
func pickTargets(cfg *config.Config, args []string, all bool) ([]config.Source, error) {
	switch {
	case all && len(args) > 0:
		return nil, errors.New("pass a source name or --all, not both")
	case all:
		targets := cfg.Enabled()
		if len(targets) == 0 {
			return nil, errors.New("no enabled sources in configuration")
		}
		return targets, nil
	case len(args) == 1:
		src, ok := cfg.Source(args[0])
		if !ok {
			return nil, fmt.Errorf("unknown source %q", args[0])
		}
		return []config.Source{src}, nil
	default:
		return nil, errors.New("pass a source name or --all")
	}
}

func newCaptureCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "capture [source]",
		Short: "Capture a single image outside the schedule",
		Long: `Capture triggers one immediate cycle on the named source, or on every
enabled source with --all. Images land in the same output tree the
daemon writes to, so a manual capture is indistinguishable from a
scheduled one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Daemon)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			targets, err := pickTargets(cfg, args, all)
			if err != nil {
				return err
			}

			var failed bool
			for _, src := range targets {
				files, err := daemon.CaptureOnce(cmd.Context(), cfg, src, log)
				if err != nil {
					failed = true
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", src.Name, err)
					continue
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
			}
			if failed {
				return errors.New("one or more captures failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "capture from every enabled source")
	return cmd
}
