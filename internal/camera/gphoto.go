package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
)

const gphotoTool = "gphoto2"

// captureAttempts bounds retries per tick; tethered captures fail
// transiently on flaky USB links.
const captureAttempts = 6

var (
	portRe   = regexp.MustCompile(`usb:(\d+),(\d+)`)
	serialRe = regexp.MustCompile(`Current: (\w+)`)
)

// Port is a gphoto2 USB address as printed by --auto-detect. It is transient:
// re-plugging a camera usually moves it, which is why sources are configured
// by serial number instead.
type Port struct {
	Bus int
	Dev int
}

func (p Port) String() string { return fmt.Sprintf("usb:%03d,%03d", p.Bus, p.Dev) }

// DetectTethered scans the USB bus and returns the serial number of every
// attached DSLR with its current port. Cameras whose serial reads back as
// "none" (a firmware artifact) are skipped, as are ports that fail to answer.
func DetectTethered(ctx context.Context, run Runner) (map[string]Port, error) {
	out, err := run.Run(ctx, gphotoTool, "--auto-detect")
	if err != nil {
		return nil, fmt.Errorf("gphoto2 auto-detect: %w [%s]", err, trimOutput(out))
	}

	found := make(map[string]Port)
	for _, m := range portRe.FindAllStringSubmatch(string(out), -1) {
		bus, _ := strconv.Atoi(m[1])
		dev, _ := strconv.Atoi(m[2])
		port := Port{Bus: bus, Dev: dev}

		serial, err := portSerial(ctx, run, port)
		if err != nil || serial == "" {
			continue
		}
		if bytes.EqualFold([]byte(serial), []byte("none")) {
			continue
		}
		found[serial] = port
	}
	return found, nil
}

func portSerial(ctx context.Context, run Runner, port Port) (string, error) {
	out, err := run.Run(ctx, gphotoTool, "--port="+port.String(), "--get-config=serialnumber")
	if err != nil {
		return "", err
	}
	m := serialRe.FindStringSubmatch(string(out))
	if m == nil {
		return "", nil
	}
	return m[1], nil
}

// GPhoto drives a tethered DSLR through gphoto2. The camera is located by
// serial number on every capture because its USB address can change between
// ticks.
type GPhoto struct {
	name   string
	serial string
	run    Runner
}

// NewGPhoto creates the tethered source for the camera with the given
// serial number.
func NewGPhoto(name, serial string, run Runner) *GPhoto {
	return &GPhoto{name: name, serial: serial, run: run}
}

func (g *GPhoto) Name() string { return g.name }

// Serial returns the configured serial number.
func (g *GPhoto) Serial() string { return g.serial }

// Capture locates the camera, then shoots and downloads into dir. The %C
// placeholder makes gphoto2 write one file per image type the camera is set
// to produce (JPEG, raw, ...), all sharing the same stem.
func (g *GPhoto) Capture(ctx context.Context, dir string) ([]string, error) {
	ports, err := DetectTethered(ctx, g.run)
	if err != nil {
		return nil, &CaptureError{Source: g.name, Op: "detect", Err: err}
	}
	port, ok := ports[g.serial]
	if !ok {
		return nil, &CaptureError{Source: g.name, Op: "detect",
			Err: fmt.Errorf("no camera with serial %s attached", g.serial)}
	}

	args := []string{
		"--port=" + port.String(),
		"--set-config=capturetarget=0",
		"--force-overwrite",
		"--capture-image-and-download",
		"--filename=" + filepath.Join(dir, g.name+".%C"),
	}

	var lastOut []byte
	var lastErr error
	for attempt := 1; attempt <= captureAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, &CaptureError{Source: g.name, Op: "capture", Err: ctx.Err()}
		}

		out, runErr := g.run.Run(ctx, gphotoTool, args...)
		switch {
		case runErr != nil:
			lastOut, lastErr = out, runErr
		case containsError(out):
			// gphoto2 sometimes exits 0 while printing *** Error ***.
			lastOut, lastErr = out, errors.New("tool reported an error")
		default:
			files, globErr := filepath.Glob(filepath.Join(dir, g.name+".*"))
			if globErr == nil && len(files) > 0 {
				return files, nil
			}
			lastOut, lastErr = out, errors.New("no image downloaded")
		}
	}

	return nil, &CaptureError{Source: g.name, Op: "capture", Output: trimOutput(lastOut),
		Err: fmt.Errorf("%d attempts failed: %w", captureAttempts, lastErr)}
}

func containsError(out []byte) bool {
	return bytes.Contains(bytes.ToLower(out), []byte("error"))
}
