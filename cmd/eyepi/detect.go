package main

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/borevitzlab/go-eyepi/internal/camera"
)

// detectReport is the YAML shape printed by the detect command.
type detectReport struct {
	Onboard  bool              `yaml:"onboard"`
	Tethered map[string]string `yaml:"tethered"`
}

func buildDetectReport(onboard bool, tethered map[string]camera.Port) detectReport {
	rep := detectReport{
		Onboard:  onboard,
		Tethered: make(map[string]string, len(tethered)),
	}
	for serial, port := range tethered {
		rep.Tethered[serial] = port.String()
	}
	return rep
}

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "List cameras visible to this machine",
		Long: `Detect probes for the onboard camera module and for USB-tethered
cameras, and prints what it found as YAML keyed by serial number.
Serials from this report go straight into [gphoto.<name>] sections of
the configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run := camera.ExecRunner{}
			ctx := cmd.Context()

			onboard := camera.DetectOnboard(ctx, run)

			tethered, err := camera.DetectTethered(ctx, run)
			if err != nil && !errors.Is(err, exec.ErrNotFound) {
				return fmt.Errorf("detect tethered: %w", err)
			}

			out, err := yaml.Marshal(buildDetectReport(onboard, tethered))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
