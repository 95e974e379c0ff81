package camera

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	onboardTool = "libcamera-still"
	vcgencmd    = "vcgencmd"
)

// Onboard drives the camera module on the board through libcamera-still.
type Onboard struct {
	name   string
	device int // camera index, 0 = default module
	run    Runner
}

// NewOnboard creates the onboard source. device selects the camera when the
// board has more than one module port.
func NewOnboard(name string, device int, run Runner) *Onboard {
	return &Onboard{name: name, device: device, run: run}
}

func (o *Onboard) Name() string { return o.name }

// Capture acquires one JPEG into dir.
func (o *Onboard) Capture(ctx context.Context, dir string) ([]string, error) {
	target := filepath.Join(dir, o.name+".jpg")
	args := []string{"--nopreview", "--immediate", "-o", target}
	if o.device > 0 {
		args = append(args, "--camera", strconv.Itoa(o.device))
	}

	out, err := o.run.Run(ctx, onboardTool, args...)
	if err != nil {
		return nil, &CaptureError{Source: o.name, Op: "capture", Output: trimOutput(out), Err: err}
	}
	if _, err := os.Stat(target); err != nil {
		return nil, &CaptureError{Source: o.name, Op: "capture", Output: trimOutput(out),
			Err: fmt.Errorf("tool succeeded but produced no image: %w", err)}
	}
	return []string{target}, nil
}

// DetectOnboard reports whether the board has a camera module attached,
// using the firmware's own answer.
func DetectOnboard(ctx context.Context, run Runner) bool {
	out, err := run.Run(ctx, vcgencmd, "get_camera")
	if err != nil {
		return false
	}
	return bytes.Contains(out, []byte("detected=1"))
}
