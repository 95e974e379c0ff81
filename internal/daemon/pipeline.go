package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/borevitzlab/go-eyepi/internal/camera"
	"github.com/borevitzlab/go-eyepi/internal/config"
	"github.com/borevitzlab/go-eyepi/internal/hw/led"
	"github.com/borevitzlab/go-eyepi/internal/output"
	"github.com/borevitzlab/go-eyepi/internal/telemetry"
)

// pipeline is one source's full capture path: spool, capture, commit,
// preview, telemetry. It implements scheduler.Source.
type pipeline struct {
	src      config.Source
	cam      camera.Camera
	out      *output.Writer
	telegraf *telemetry.Client // nil when disabled
	led      *led.StatusLED    // nil-safe
	log      *zap.Logger
}

func (p *pipeline) Name() string   { return p.src.Name }
func (p *pipeline) Prefix() string { return p.src.Prefix }

// Cycle runs one capture. Images land in a private spool directory and only
// reach the output tree through Commit's renames, so a failed or aborted
// capture leaves nothing visible behind.
func (p *pipeline) Cycle(ctx context.Context) ([]string, error) {
	p.led.CaptureStarted()
	defer p.led.CaptureDone()

	spool, err := p.out.Spool(p.src.Prefix)
	if err != nil {
		return nil, err
	}
	defer p.out.DiscardSpool(spool)

	start := time.Now()
	files, err := p.cam.Capture(ctx, spool)
	captureTook := time.Since(start)
	if err != nil {
		return nil, err
	}

	// Filenames carry the completion time of the capture.
	done := time.Now()
	committed, err := p.out.Commit(p.src.Prefix, done, files)
	if err != nil {
		return committed, err
	}

	if src, ok := output.PreviewSource(committed); ok {
		if err := p.out.WritePreview(p.src.Prefix, src); err != nil {
			p.log.Warn("preview update failed",
				zap.String("source", p.src.Name), zap.Error(err))
		}
	}

	if p.telegraf != nil {
		p.telegraf.Send(telemetry.Sample{
			Camera:  p.src.Prefix,
			Capture: captureTook,
			Total:   time.Since(start),
			Files:   len(committed),
			When:    done,
		})
	}
	return committed, nil
}

// CaptureOnce runs a single capture-and-commit cycle for one source outside
// any schedule. The capture CLI command uses it so one-shot captures go
// through the exact same output path as the daemon.
func CaptureOnce(ctx context.Context, cfg *config.Config, src config.Source, log *zap.Logger) ([]string, error) {
	w, err := output.NewWriter(cfg.Daemon.Output)
	if err != nil {
		return nil, err
	}
	p := &pipeline{
		src: src,
		cam: newCamera(src, camera.ExecRunner{}),
		out: w,
		log: log,
	}
	return p.Cycle(ctx)
}

// newCamera builds the capture implementation for a source. Cameras are named
// by prefix: it is the validated filesystem-safe identity and becomes the
// spool filename stem.
func newCamera(src config.Source, run camera.Runner) camera.Camera {
	if src.Kind == config.KindTethered {
		return camera.NewGPhoto(src.Prefix, src.Serial, run)
	}
	return camera.NewOnboard(src.Prefix, src.Device, run)
}
