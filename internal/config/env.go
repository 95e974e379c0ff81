package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// overrides are the fixed per-deployment variables, read once at load.
type overrides struct {
	PicamPrefix   string `env:"PICAM_FILENAMEPREFIX"`
	PicamInterval string `env:"PICAM_INTERVAL"`
	Output        string `env:"EYEPI_OUTPUT"`
	Listen        string `env:"EYEPI_LISTEN"`
	Telegraf      string `env:"EYEPI_TELEGRAF"`
}

// applyEnv layers the environment over the raw file content, before
// validation so overridden values go through the same checks.
//
// PICAM_* only overrides an existing [rpicamera] section; without the
// section there is no onboard source to override. GPHOTO_<name>_<key>
// overrides or creates tethered sections, so a camera can be configured
// entirely from the environment.
func applyEnv(raw *rawFile) error {
	var ov overrides
	if err := env.Parse(&ov); err != nil {
		return &Error{Reason: "parse environment", Err: err}
	}

	if ov.Output != "" {
		raw.Daemon.Output = ov.Output
	}
	if ov.Listen != "" {
		raw.Daemon.Listen = ov.Listen
	}
	if ov.Telegraf != "" {
		raw.Daemon.Telegraf = ov.Telegraf
	}

	if raw.Rpicamera != nil {
		if ov.PicamPrefix != "" {
			raw.Rpicamera.FilenamePrefix = ov.PicamPrefix
		}
		if ov.PicamInterval != "" {
			raw.Rpicamera.Interval = ov.PicamInterval
		}
	}

	return applyGphotoEnv(raw, os.Environ())
}

// applyGphotoEnv handles the dynamic GPHOTO_<NAME>_<KEY>=value contract.
// The name is the section under [gphoto], the key one of its keys; both are
// case-insensitive. Unknown keys are ignored like unknown file keys.
func applyGphotoEnv(raw *rawFile, environ []string) error {
	for _, kv := range environ {
		if !strings.HasPrefix(kv, "GPHOTO_") {
			continue
		}
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		parts := strings.SplitN(name, "_", 3)
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			continue
		}
		section := strings.ToLower(parts[1])
		key := strings.ToLower(parts[2])

		if raw.Gphoto == nil {
			raw.Gphoto = make(map[string]rawCamera)
		}
		sec := raw.Gphoto[section]
		switch key {
		case "enable":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return &Error{Section: "gphoto." + section, Key: "enable",
					Reason: "bad value in " + name, Err: err}
			}
			sec.Enable = &b
		case "filenameprefix":
			sec.FilenamePrefix = value
		case "interval":
			sec.Interval = value
		case "gphotoserialnumber":
			sec.GphotoSerialNumber = value
		}
		raw.Gphoto[section] = sec
	}
	return nil
}
