package camera

import (
	"context"
	"strings"
)

// Camera is one capture source, regardless of how the frame is acquired
// (onboard module or tethered DSLR). Capture blocks for the duration of the
// capture and writes only inside dir; it returns the files it created there.
// Callers hand in a fresh spool directory, so a failed capture never leaves
// anything at a final output path.
type Camera interface {
	Name() string
	Capture(ctx context.Context, dir string) ([]string, error)
}

// CaptureError is a failed capture attempt: the tool exited nonzero, reported
// an error, or the device is not attached. Workers log it and keep their
// schedule; it is never fatal.
type CaptureError struct {
	Source string // source name
	Op     string // "detect" or "capture"
	Output string // trimmed tool output, if any
	Err    error
}

func (e *CaptureError) Error() string {
	msg := e.Source + " " + e.Op + " failed"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += " [" + e.Output + "]"
	}
	return msg
}

func (e *CaptureError) Unwrap() error { return e.Err }

// trimOutput compacts tool output for error messages and logs.
func trimOutput(out []byte) string {
	s := strings.TrimSpace(string(out))
	const max = 512
	if len(s) > max {
		s = s[:max] + "..."
	}
	return strings.ReplaceAll(s, "\n", " | ")
}
