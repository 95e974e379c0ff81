package config

import (
	"fmt"
	"strings"
)

// Error is any configuration failure: unreadable file, bad TOML, invalid
// value during validation. It is fatal at startup and only there.
type Error struct {
	File    string
	Section string
	Key     string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	parts := []string{"config"}
	if e.File != "" {
		parts[0] = "config " + e.File
	}
	switch {
	case e.Section != "" && e.Key != "":
		parts = append(parts, fmt.Sprintf("[%s] %s", e.Section, e.Key))
	case e.Section != "":
		parts = append(parts, "["+e.Section+"]")
	case e.Key != "":
		parts = append(parts, e.Key)
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }
