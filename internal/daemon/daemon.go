// Package daemon wires the capture service together and supervises it:
// worker lifecycle, rebuilds on config or device changes, the event hub and
// the optional side services (status server, telemetry, LED).
package daemon

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/borevitzlab/go-eyepi/internal/camera"
	"github.com/borevitzlab/go-eyepi/internal/config"
	"github.com/borevitzlab/go-eyepi/internal/cronrunner"
	"github.com/borevitzlab/go-eyepi/internal/hotplug"
	"github.com/borevitzlab/go-eyepi/internal/hw/gpio"
	"github.com/borevitzlab/go-eyepi/internal/hw/led"
	"github.com/borevitzlab/go-eyepi/internal/output"
	"github.com/borevitzlab/go-eyepi/internal/scheduler"
	"github.com/borevitzlab/go-eyepi/internal/telemetry"
	"github.com/borevitzlab/go-eyepi/internal/web"
)

type Daemon struct {
	path    string // config file, reloaded on rebuild
	version string
	log     *zap.Logger
	runner  camera.Runner

	telegraf    *telemetry.Client // nil when disabled
	statusLED   *led.StatusLED    // nil when disabled
	driver      gpio.Driver
	broadcaster *web.Broadcaster
	events      chan scheduler.Event
	rebuild     chan string
	started     time.Time

	mu     sync.Mutex
	cfg    *config.Config
	writer *output.Writer
	set    *scheduler.Set
	last   map[string]web.Event
}

// New prepares a daemon around an already loaded configuration. The caller
// owns the initial load so a bad config surfaces as a startup error and a
// non-zero exit, never as a half-running daemon.
func New(path string, cfg *config.Config, log *zap.Logger, version string) *Daemon {
	return &Daemon{
		path:        path,
		version:     version,
		log:         log,
		runner:      camera.ExecRunner{},
		cfg:         cfg,
		broadcaster: web.NewBroadcaster(),
		events:      make(chan scheduler.Event, 16),
		rebuild:     make(chan string, 8),
		last:        make(map[string]web.Event),
	}
}

// Run blocks until ctx is cancelled. Capture failures inside the schedule
// are logged and absorbed; only startup problems are returned.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.started = time.Now()

	w, err := output.NewWriter(d.cfg.Daemon.Output)
	if err != nil {
		return err
	}
	d.writer = w
	d.sweepSpool()

	if d.cfg.Daemon.TelegrafEnabled() {
		d.telegraf = telemetry.New(d.cfg.Daemon.Telegraf, d.log.Named("telemetry"))
	}
	d.setupLED()
	defer d.closeLED()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.hub(ctx)
	}()

	if d.cfg.Daemon.WebEnabled() {
		srv := web.NewServer(d.cfg.Daemon.Listen, d.broadcaster, d.status, d.previewFor, d.log.Named("web"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				d.log.Error("status server failed", zap.Error(err))
			}
		}()
	}

	d.startWorkers(ctx)

	cron := cronrunner.New(d.log.Named("cron"), ctx)
	monitor := hotplug.New(d.scan, d.log.Named("hotplug"))
	if _, err := monitor.Check(ctx); err != nil {
		d.log.Debug("initial device scan failed", zap.Error(err))
	}
	if _, err := cron.Add("device rescan", "@every "+d.cfg.Daemon.Rescan.String(), func(ctx context.Context) {
		changed, err := monitor.Check(ctx)
		if err != nil {
			d.log.Debug("device scan failed", zap.Error(err))
			return
		}
		if changed {
			d.requestRebuild("device change")
		}
	}); err != nil {
		d.stopWorkers()
		return err
	}
	if _, err := cron.Add("spool sweep", "@daily", func(context.Context) {
		d.sweepSpool()
	}); err != nil {
		d.stopWorkers()
		return err
	}
	cron.Start()
	defer cron.Stop()

	if err := config.Watch(d.path, func() { d.requestRebuild("config change") }); err != nil {
		d.log.Warn("config watch unavailable", zap.Error(err))
	}

	d.log.Info("daemon up",
		zap.String("config", d.path),
		zap.String("output", w.Base()),
		zap.Int("sources", len(d.cfg.Enabled())))

	// Rebuild requests within one debounce window collapse into a single
	// stop-reload-start, so a config save plus a camera replug costs one
	// schedule restart, not two.
	var pending []string
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			d.log.Info("shutting down")
			d.stopWorkers()
			wg.Wait()
			return nil

		case reason := <-d.rebuild:
			if !slices.Contains(pending, reason) {
				pending = append(pending, reason)
			}
			if debounce == nil {
				debounce = time.After(d.cfg.Daemon.Debounce)
			}

		case <-debounce:
			debounce = nil
			reason := strings.Join(pending, ", ")
			pending = nil
			d.doRebuild(ctx, reason)
		}
	}
}

func (d *Daemon) requestRebuild(reason string) {
	select {
	case d.rebuild <- reason:
	default:
	}
}

// doRebuild tears the worker set down, reloads the config and starts a new
// generation. A reload failure keeps the previous configuration running;
// only startup treats config errors as fatal.
func (d *Daemon) doRebuild(ctx context.Context, reason string) {
	d.log.Info("rebuilding capture schedule", zap.String("reason", reason))

	cfg, err := config.Load(d.path)
	if err != nil {
		d.log.Error("config reload failed, keeping previous configuration", zap.Error(err))
	}

	d.stopWorkers()

	d.mu.Lock()
	if cfg != nil {
		d.cfg = cfg
	}
	base := d.cfg.Daemon.Output
	if base != d.writer.Base() {
		if w, werr := output.NewWriter(base); werr != nil {
			d.log.Error("new output directory unusable, keeping previous",
				zap.String("dir", base), zap.Error(werr))
		} else {
			d.writer = w
		}
	}
	d.mu.Unlock()

	d.startWorkers(ctx)
	go d.statusLED.Blink(3, 100*time.Millisecond)
}

// hub fans capture events out to the SSE broadcaster and keeps the last
// event per source for the status endpoint. Logging and telemetry already
// happened closer to the capture.
func (d *Daemon) hub(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			wev := web.NewEvent(ev)
			d.mu.Lock()
			d.last[ev.Source] = wev
			d.mu.Unlock()
			d.broadcaster.Broadcast(ev)
		}
	}
}

func (d *Daemon) status() web.Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := web.Status{Started: d.started, Version: d.version}
	for _, src := range d.cfg.Sources {
		ss := web.SourceStatus{
			Name:     src.Name,
			Prefix:   src.Prefix,
			Kind:     string(src.Kind),
			Interval: src.Interval.String(),
			Enabled:  src.Enabled,
		}
		if ev, ok := d.last[src.Name]; ok {
			last := ev
			ss.Last = &last
		}
		st.Sources = append(st.Sources, ss)
	}
	return st
}

func (d *Daemon) previewFor(prefix string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	src, ok := d.cfg.Source(prefix)
	if !ok {
		return "", false
	}
	return d.writer.PreviewPath(src.Prefix), true
}

func (d *Daemon) sweepSpool() {
	d.mu.Lock()
	w := d.writer
	d.mu.Unlock()

	if n, err := w.SweepSpool(); err != nil {
		d.log.Warn("spool sweep failed", zap.Error(err))
	} else if n > 0 {
		d.log.Info("removed stale spool entries", zap.Int("count", n))
	}
}

func (d *Daemon) setupLED() {
	if !d.cfg.Daemon.LEDEnabled() {
		return
	}
	driver, err := gpio.NewDriver(!gpio.Available())
	if err != nil {
		d.log.Warn("gpio unavailable, status led disabled", zap.Error(err))
		return
	}
	d.driver = driver
	d.statusLED = led.New(driver, d.cfg.Daemon.StatusLED)
	d.log.Info("status led enabled", zap.Int("pin", d.cfg.Daemon.StatusLED))
}

func (d *Daemon) closeLED() {
	d.statusLED.Close()
	if d.driver != nil {
		d.driver.Close()
	}
}
