package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultInterval applies when a camera section has no interval key.
const DefaultInterval = 10 * time.Minute

// intervalRe is the whole grammar: an integer immediately followed by a
// single unit. Compound forms ("1h30m") and bare numbers are rejected.
var intervalRe = regexp.MustCompile(`^([0-9]+)(s|m|h)$`)

// ParseInterval parses capture interval strings like "30s", "10m" or "2h".
// The unit must be one of s, m or h and the value must be positive.
func ParseInterval(s string) (time.Duration, error) {
	m := intervalRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid interval %q: want <number><unit> with unit s, m or h", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid interval %q: must be positive", s)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	}
	return time.Duration(n) * unit, nil
}
