package daemon

import (
	"context"
	"errors"
	"os/exec"

	"go.uber.org/zap"

	"github.com/borevitzlab/go-eyepi/internal/camera"
	"github.com/borevitzlab/go-eyepi/internal/config"
	"github.com/borevitzlab/go-eyepi/internal/hotplug"
	"github.com/borevitzlab/go-eyepi/internal/scheduler"
)

// attached is what hardware detection saw just before a worker build.
type attached struct {
	onboard bool
	serials map[string]camera.Port
}

func (d *Daemon) detect(ctx context.Context) attached {
	a := attached{onboard: camera.DetectOnboard(ctx, d.runner)}
	ports, err := camera.DetectTethered(ctx, d.runner)
	if err != nil {
		d.log.Debug("tethered detection failed", zap.Error(err))
	}
	a.serials = ports
	return a
}

// cameraFor builds the capture implementation for src, or reports that its
// hardware is not attached.
func (d *Daemon) cameraFor(src config.Source, a attached) (camera.Camera, bool) {
	switch src.Kind {
	case config.KindTethered:
		if _, ok := a.serials[src.Serial]; !ok {
			return nil, false
		}
	default:
		if !a.onboard {
			return nil, false
		}
	}
	return newCamera(src, d.runner), true
}

// startWorkers detects hardware and launches one worker per enabled source
// whose device is present. Absent sources are skipped; a later rescan
// rebuild picks them up.
func (d *Daemon) startWorkers(ctx context.Context) {
	a := d.detect(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	var workers []*scheduler.Worker
	for _, src := range d.cfg.Enabled() {
		cam, ok := d.cameraFor(src, a)
		if !ok {
			d.log.Warn("hardware absent, source skipped until next rescan",
				zap.String("source", src.Name), zap.String("serial", src.Serial))
			continue
		}
		p := &pipeline{
			src:      src,
			cam:      cam,
			out:      d.writer,
			telegraf: d.telegraf,
			led:      d.statusLED,
			log:      d.log.Named("pipeline"),
		}
		workers = append(workers, scheduler.New(p, src.Interval, d.events, d.log.Named("scheduler")))
	}
	if len(workers) == 0 {
		d.log.Warn("no capturable sources, waiting for devices or config changes")
	}
	d.set = scheduler.StartSet(workers)
}

// stopWorkers cancels the current worker set and waits up to the configured
// grace for in-flight captures to finish.
func (d *Daemon) stopWorkers() {
	d.mu.Lock()
	set := d.set
	grace := d.cfg.Daemon.Grace
	d.set = nil
	d.mu.Unlock()

	if set == nil {
		return
	}
	if !set.Stop(grace) {
		d.log.Warn("captures still running after grace period", zap.Duration("grace", grace))
	}
}

// scan is the hotplug monitor's view of attached devices. A missing gphoto2
// binary means zero tethered cameras, not a scan failure.
func (d *Daemon) scan(ctx context.Context) (hotplug.Snapshot, error) {
	onboard := camera.DetectOnboard(ctx, d.runner)
	ports, err := camera.DetectTethered(ctx, d.runner)
	if err != nil && !errors.Is(err, exec.ErrNotFound) {
		return hotplug.Snapshot{}, err
	}
	serials := make([]string, 0, len(ports))
	for s := range ports {
		serials = append(serials, s)
	}
	return hotplug.NewSnapshot(onboard, serials), nil
}
