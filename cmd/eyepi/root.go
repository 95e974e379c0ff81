package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/borevitzlab/go-eyepi/internal/config"
)

var (
	flagConfig string
	flagDebug  bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "eyepi",
		Short: "Timelapse capture daemon for Raspberry Pi camera rigs",
		Long: `eyepi drives one or more cameras on a fixed interval and files every
capture into a per-camera output tree. It handles the Raspberry Pi
camera module alongside any number of USB-tethered cameras driven
through gphoto2, and keeps running across config edits and cameras
coming and going.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Optional .env for development setups. Missing file is fine.
			_ = godotenv.Load()
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", defaultConfigPath(), "path to the configuration file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "force debug logging regardless of config")

	root.AddCommand(newRunCmd())
	root.AddCommand(newDetectCmd())
	root.AddCommand(newCaptureCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// defaultConfigPath is the --config default: EYEPI_CONF when set, so
// containerized deployments can relocate the file without flags.
func defaultConfigPath() string {
	if p := os.Getenv("EYEPI_CONF"); p != "" {
		return p
	}
	return config.DefaultPath
}

// loadConfig reads the config file behind --config and applies CLI-level
// overrides on top of it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.Daemon.LogLevel = "debug"
	}
	return cfg, nil
}
