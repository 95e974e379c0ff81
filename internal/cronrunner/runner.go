// Package cronrunner schedules the daemon's periodic housekeeping jobs,
// device rescans and spool sweeps, on top of robfig/cron.
package cronrunner

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner struct {
	cron *cron.Cron
	log  *zap.Logger
	base context.Context
}

func New(log *zap.Logger, base context.Context) *Runner {
	if base == nil {
		base = context.Background()
	}
	return &Runner{cron: cron.New(), log: log, base: base}
}

// Add registers job under the given cron spec. Descriptors such as
// "@every 5m" and "@daily" are accepted.
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() { job(r.base) })
	if err != nil {
		return 0, fmt.Errorf("cron job %s: %w", name, err)
	}
	r.log.Debug("cron job registered", zap.String("job", name), zap.String("spec", spec))
	return id, nil
}

func (r *Runner) Start() {
	r.log.Info("cron started")
	r.cron.Start()
}

// Stop halts scheduling and waits for any running job to return.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("cron stopped")
}
