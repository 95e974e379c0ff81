package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/borevitzlab/go-eyepi/internal/config"
)

// configView et al. render the effective configuration as YAML. Durations
// go through String() because yaml.v3 would otherwise print them as raw
// nanosecond integers.
type configView struct {
	Daemon  daemonView   `yaml:"daemon"`
	Sources []sourceView `yaml:"sources"`
}

type daemonView struct {
	Output      string `yaml:"output"`
	LogLevel    string `yaml:"loglevel"`
	LogEncoding string `yaml:"logencoding"`
	Listen      string `yaml:"listen,omitempty"`
	Telegraf    string `yaml:"telegraf,omitempty"`
	StatusLED   int    `yaml:"status_led,omitempty"`
	Rescan      string `yaml:"rescan"`
	Debounce    string `yaml:"debounce"`
	Grace       string `yaml:"grace"`
}

type sourceView struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Prefix   string `yaml:"prefix"`
	Interval string `yaml:"interval"`
	Enabled  bool   `yaml:"enabled"`
	Serial   string `yaml:"serial,omitempty"`
	Device   int    `yaml:"device,omitempty"`
}

func buildConfigView(cfg *config.Config) configView {
	view := configView{
		Daemon: daemonView{
			Output:      cfg.Daemon.Output,
			LogLevel:    cfg.Daemon.LogLevel,
			LogEncoding: cfg.Daemon.LogEncoding,
			Listen:      cfg.Daemon.Listen,
			Telegraf:    cfg.Daemon.Telegraf,
			StatusLED:   cfg.Daemon.StatusLED,
			Rescan:      cfg.Daemon.Rescan.String(),
			Debounce:    cfg.Daemon.Debounce.String(),
			Grace:       cfg.Daemon.Grace.String(),
		},
	}
	for _, s := range cfg.Sources {
		view.Sources = append(view.Sources, sourceView{
			Name:     s.Name,
			Kind:     string(s.Kind),
			Prefix:   s.Prefix,
			Interval: s.Interval.String(),
			Enabled:  s.Enabled,
			Serial:   s.Serial,
			Device:   s.Device,
		})
	}
	return view
}

func newConfigCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or validate the effective configuration",
		Long: `Config loads the configuration file, applies defaults and validation,
and prints the result as YAML. With --check it prints nothing on
success, making it usable as a pre-deploy gate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if check {
				fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
				return nil
			}
			out, err := yaml.Marshal(buildConfigView(cfg))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "validate the config and exit")
	return cmd
}
