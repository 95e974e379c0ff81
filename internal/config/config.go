package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultPath is where the daemon looks for its configuration.
	DefaultPath = "/etc/eyepi/eyepi.conf"

	// DefaultOutput is the base directory for captured images.
	DefaultOutput = "/var/lib/eyepi"

	defaultTelegraf = "127.0.0.1:8092"
)

// DefaultFile is written to the config path when no file exists yet.
const DefaultFile = `# eyepi configuration.
#
# [rpicamera] drives the onboard camera module. Add one [gphoto.<name>]
# section per tethered DSLR, identified by its serial number.

[rpicamera]
enable = true
`

// SourceKind selects the capture implementation for a source.
type SourceKind string

const (
	KindOnboard  SourceKind = "onboard"  // camera module on the board
	KindTethered SourceKind = "tethered" // DSLR on USB, addressed by serial
)

// Source is one configured camera stream. Built once per load and passed
// around by value; it never changes for the life of a worker.
type Source struct {
	Name     string     // section name ("rpicamera" or the gphoto subsection key)
	Kind     SourceKind
	Prefix   string // filename and directory stem, unique across sources
	Interval time.Duration
	Enabled  bool
	Serial   string // tethered only
	Device   int    // onboard only: camera index handed to the capture tool
}

// Daemon holds process-wide settings from the [daemon] section.
type Daemon struct {
	Output      string        // base output directory
	LogLevel    string        // debug|info|warn|error
	LogEncoding string        // console|json
	Listen      string        // status server address, "" = disabled
	Telegraf    string        // metrics UDP address, "off" or "" = disabled
	StatusLED   int           // BCM pin, 0 = disabled
	Rescan      time.Duration // device rescan period
	Debounce    time.Duration // rebuild debounce window
	Grace       time.Duration // shutdown grace for in-flight captures
}

// WebEnabled reports whether the status server should run.
func (d Daemon) WebEnabled() bool { return d.Listen != "" }

// TelegrafEnabled reports whether capture metrics should be sent.
func (d Daemon) TelegrafEnabled() bool { return d.Telegraf != "" && d.Telegraf != "off" }

// LEDEnabled reports whether a status LED pin is configured.
func (d Daemon) LEDEnabled() bool { return d.StatusLED > 0 }

// Config aggregates the daemon settings and the ordered camera sources:
// the onboard section first, then tethered sections sorted by name.
type Config struct {
	Daemon  Daemon
	Sources []Source
}

// Enabled returns only the sources that may capture.
func (c *Config) Enabled() []Source {
	var out []Source
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Source looks a source up by section name or prefix.
func (c *Config) Source(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name || s.Prefix == name {
			return s, true
		}
	}
	return Source{}, false
}

// raw* mirror the TOML file before validation. Enable is a pointer so a
// section without the key defaults to enabled.
type rawCamera struct {
	Enable             *bool  `mapstructure:"enable"`
	FilenamePrefix     string `mapstructure:"filenameprefix"`
	Interval           string `mapstructure:"interval"`
	Device             int    `mapstructure:"device"`
	GphotoSerialNumber string `mapstructure:"gphotoserialnumber"`
}

type rawDaemon struct {
	Output      string `mapstructure:"output"`
	LogLevel    string `mapstructure:"loglevel"`
	LogEncoding string `mapstructure:"logencoding"`
	Listen      string `mapstructure:"listen"`
	Telegraf    string `mapstructure:"telegraf"`
	StatusLED   int    `mapstructure:"statusled"`
	Rescan      string `mapstructure:"rescan"`
	Debounce    string `mapstructure:"debounce"`
	Grace       string `mapstructure:"grace"`
}

type rawFile struct {
	Daemon    rawDaemon            `mapstructure:"daemon"`
	Rpicamera *rawCamera           `mapstructure:"rpicamera"`
	Gphoto    map[string]rawCamera `mapstructure:"gphoto"`
}

// prefixRe is what a prefix may look like: it becomes a directory name and a
// filename stem, so no separators and no leading dot.
var prefixRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Load reads the TOML file at path, applies environment overrides and returns
// the validated configuration. Unknown sections and keys are ignored so older
// daemons keep working with newer files. All failures come back as *Error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("daemon.output", DefaultOutput)
	v.SetDefault("daemon.loglevel", "info")
	v.SetDefault("daemon.logencoding", "console")
	v.SetDefault("daemon.telegraf", defaultTelegraf)
	v.SetDefault("daemon.rescan", "30s")
	v.SetDefault("daemon.debounce", "10s")
	v.SetDefault("daemon.grace", "30s")

	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{File: path, Reason: "read config", Err: err}
	}

	var raw rawFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, &Error{File: path, Reason: "decode config", Err: err}
	}

	if err := applyEnv(&raw); err != nil {
		return nil, err
	}

	return build(path, &raw)
}

// EnsureFile writes the default configuration to path if nothing exists
// there yet. Load itself never writes.
func EnsureFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return &Error{File: path, Reason: "stat config", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Error{File: path, Reason: "create config dir", Err: err}
	}
	if err := os.WriteFile(path, []byte(DefaultFile), 0o644); err != nil {
		return &Error{File: path, Reason: "write default config", Err: err}
	}
	return nil
}

func build(path string, raw *rawFile) (*Config, error) {
	cfg := &Config{}

	d, err := buildDaemon(path, raw.Daemon)
	if err != nil {
		return nil, err
	}
	cfg.Daemon = d

	if raw.Rpicamera != nil {
		src, err := buildOnboard(path, raw.Rpicamera)
		if err != nil {
			return nil, err
		}
		cfg.Sources = append(cfg.Sources, src)
	}

	// Section names are case-insensitive: the TOML layer lowercases keys and
	// the GPHOTO_* environment contract does the same.
	gphoto := make(map[string]rawCamera, len(raw.Gphoto))
	for name, sec := range raw.Gphoto {
		gphoto[strings.ToLower(name)] = sec
	}
	names := make([]string, 0, len(gphoto))
	for name := range gphoto {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sec := gphoto[name]
		src, err := buildTethered(path, name, &sec)
		if err != nil {
			return nil, err
		}
		cfg.Sources = append(cfg.Sources, src)
	}

	seen := make(map[string]string, len(cfg.Sources))
	for _, s := range cfg.Sources {
		if other, dup := seen[s.Prefix]; dup {
			return nil, &Error{
				File:    path,
				Section: s.Name,
				Key:     "filenameprefix",
				Reason:  fmt.Sprintf("prefix %q already used by [%s]", s.Prefix, other),
			}
		}
		seen[s.Prefix] = s.Name
	}

	return cfg, nil
}

func buildDaemon(path string, raw rawDaemon) (Daemon, error) {
	d := Daemon{
		Output:      raw.Output,
		LogLevel:    raw.LogLevel,
		LogEncoding: raw.LogEncoding,
		Listen:      raw.Listen,
		Telegraf:    raw.Telegraf,
		StatusLED:   raw.StatusLED,
	}
	if d.Output == "" {
		return Daemon{}, &Error{File: path, Section: "daemon", Key: "output", Reason: "must not be empty"}
	}
	switch d.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Daemon{}, &Error{File: path, Section: "daemon", Key: "loglevel",
			Reason: fmt.Sprintf("unknown level %q (want debug, info, warn or error)", d.LogLevel)}
	}
	switch d.LogEncoding {
	case "console", "json":
	default:
		return Daemon{}, &Error{File: path, Section: "daemon", Key: "logencoding",
			Reason: fmt.Sprintf("unknown encoding %q (want console or json)", d.LogEncoding)}
	}
	if d.StatusLED < 0 {
		return Daemon{}, &Error{File: path, Section: "daemon", Key: "statusled", Reason: "pin must be >= 0"}
	}

	var err error
	if d.Rescan, err = sectionInterval(path, "daemon", "rescan", raw.Rescan); err != nil {
		return Daemon{}, err
	}
	if d.Debounce, err = sectionInterval(path, "daemon", "debounce", raw.Debounce); err != nil {
		return Daemon{}, err
	}
	if d.Grace, err = sectionInterval(path, "daemon", "grace", raw.Grace); err != nil {
		return Daemon{}, err
	}
	return d, nil
}

func buildOnboard(path string, raw *rawCamera) (Source, error) {
	const section = "rpicamera"
	src := Source{
		Name:    section,
		Kind:    KindOnboard,
		Enabled: raw.Enable == nil || *raw.Enable,
		Device:  raw.Device,
	}
	if src.Device < 0 {
		return Source{}, &Error{File: path, Section: section, Key: "device", Reason: "camera index must be >= 0"}
	}

	src.Prefix = raw.FilenamePrefix
	if src.Prefix == "" {
		src.Prefix = hostPrefix()
	}
	if !prefixRe.MatchString(src.Prefix) {
		return Source{}, &Error{File: path, Section: section, Key: "filenameprefix",
			Reason: fmt.Sprintf("%q is not filesystem-safe", src.Prefix)}
	}

	var err error
	src.Interval, err = sourceInterval(path, section, raw.Interval)
	if err != nil {
		return Source{}, err
	}
	return src, nil
}

func buildTethered(path, name string, raw *rawCamera) (Source, error) {
	section := "gphoto." + name
	// The name doubles as a spool filename stem, so it obeys the same rule
	// as prefixes.
	if !prefixRe.MatchString(name) {
		return Source{}, &Error{File: path, Section: section,
			Reason: fmt.Sprintf("section name %q is not filesystem-safe", name)}
	}
	src := Source{
		Name:    name,
		Kind:    KindTethered,
		Enabled: raw.Enable == nil || *raw.Enable,
		Serial:  raw.GphotoSerialNumber,
	}
	if src.Serial == "" {
		return Source{}, &Error{File: path, Section: section, Key: "gphotoserialnumber", Reason: "must not be empty"}
	}

	src.Prefix = raw.FilenamePrefix
	if src.Prefix == "" {
		src.Prefix = name
	}
	if !prefixRe.MatchString(src.Prefix) {
		return Source{}, &Error{File: path, Section: section, Key: "filenameprefix",
			Reason: fmt.Sprintf("%q is not filesystem-safe", src.Prefix)}
	}

	var err error
	src.Interval, err = sourceInterval(path, section, raw.Interval)
	if err != nil {
		return Source{}, err
	}
	return src, nil
}

// sourceInterval applies the default when the key is absent; a present but
// unparseable value is an error, never silently defaulted.
func sourceInterval(path, section, raw string) (time.Duration, error) {
	if raw == "" {
		return DefaultInterval, nil
	}
	d, err := ParseInterval(raw)
	if err != nil {
		return 0, &Error{File: path, Section: section, Key: "interval", Err: err}
	}
	return d, nil
}

func sectionInterval(path, section, key, raw string) (time.Duration, error) {
	d, err := ParseInterval(raw)
	if err != nil {
		return 0, &Error{File: path, Section: section, Key: key, Err: err}
	}
	return d, nil
}

// hostPrefix is the fallback prefix for the onboard camera.
func hostPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "eyepi"
	}
	return host + "-Picam"
}
