package config

import (
	"testing"
	"time"
)

func TestParseInterval_Valid(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"1s", time.Second},
		{"30s", 30 * time.Second},
		{"90s", 90 * time.Second},
		{"1m", time.Minute},
		{"10m", 10 * time.Minute},
		{"90m", 90 * time.Minute},
		{"1h", time.Hour},
		{"24h", 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseInterval(tc.in)
		if err != nil {
			t.Errorf("ParseInterval(%q) returned error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseInterval(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseInterval_Invalid(t *testing.T) {
	cases := []string{
		"",        // empty
		"10",      // no unit
		"m",       // no number
		"10x",     // unknown unit
		"10S",     // units are lowercase
		"1h30m",   // compound forms are not part of the grammar
		"-5m",     // negative
		"0s",      // a source cannot fire continuously
		"0m",      //
		"10 m",    // no spaces
		" 10m",    //
		"10m ",    //
		"ten m",   //
		"10ms",    // sub-second units do not exist here
		"1.5h",    // integers only
		"10mm",    //
		"h10",     //
	}
	for _, in := range cases {
		if _, err := ParseInterval(in); err == nil {
			t.Errorf("ParseInterval(%q) = nil error, want rejection", in)
		}
	}
}

func TestParseInterval_UnitArithmetic(t *testing.T) {
	// The parsed duration is exactly number x unit seconds.
	for _, tc := range []struct {
		in      string
		seconds int64
	}{
		{"45s", 45},
		{"3m", 180},
		{"2h", 7200},
	} {
		got, err := ParseInterval(tc.in)
		if err != nil {
			t.Fatalf("ParseInterval(%q): %v", tc.in, err)
		}
		if int64(got/time.Second) != tc.seconds {
			t.Errorf("ParseInterval(%q) = %v, want %d seconds", tc.in, got, tc.seconds)
		}
	}
}
