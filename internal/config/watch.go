package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch invokes onChange whenever the file at path is rewritten. The watch
// lives for the rest of the process; callers reload through Load themselves,
// so a broken edit never replaces a good running configuration.
func Watch(path string, onChange func()) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return &Error{File: path, Reason: "watch config", Err: err}
	}
	v.OnConfigChange(func(fsnotify.Event) { onChange() })
	v.WatchConfig()
	return nil
}
