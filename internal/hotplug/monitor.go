// Package hotplug notices cameras appearing on or disappearing from the
// box between scans. It owns no hardware access itself; the daemon hands
// it a scan function and polls Check on a timer.
package hotplug

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Snapshot is the set of devices visible in one scan.
type Snapshot struct {
	Onboard bool
	Serials []string
}

// NewSnapshot copies and sorts serials so snapshots compare stably.
func NewSnapshot(onboard bool, serials []string) Snapshot {
	s := Snapshot{Onboard: onboard, Serials: slices.Clone(serials)}
	slices.Sort(s.Serials)
	return s
}

func (s Snapshot) Equal(o Snapshot) bool {
	return s.Onboard == o.Onboard && slices.Equal(s.Serials, o.Serials)
}

// Changes describes what moved between two snapshots.
func Changes(prev, cur Snapshot) []string {
	var out []string
	if cur.Onboard != prev.Onboard {
		if cur.Onboard {
			out = append(out, "onboard camera attached")
		} else {
			out = append(out, "onboard camera detached")
		}
	}
	prevSet := make(map[string]bool, len(prev.Serials))
	for _, s := range prev.Serials {
		prevSet[s] = true
	}
	curSet := make(map[string]bool, len(cur.Serials))
	for _, s := range cur.Serials {
		curSet[s] = true
	}
	for _, s := range cur.Serials {
		if !prevSet[s] {
			out = append(out, "camera "+s+" attached")
		}
	}
	for _, s := range prev.Serials {
		if !curSet[s] {
			out = append(out, "camera "+s+" detached")
		}
	}
	return out
}

// ScanFunc enumerates currently attached devices.
type ScanFunc func(ctx context.Context) (Snapshot, error)

type Monitor struct {
	mu     sync.Mutex
	scan   ScanFunc
	log    *zap.Logger
	last   Snapshot
	seeded bool
}

func New(scan ScanFunc, log *zap.Logger) *Monitor {
	return &Monitor{scan: scan, log: log}
}

// Check rescans and reports whether the device set changed since the
// previous successful scan. The first scan only seeds the baseline.
func (m *Monitor) Check(ctx context.Context) (bool, error) {
	cur, err := m.scan(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.seeded {
		m.seeded = true
		m.last = cur
		return false, nil
	}
	changes := Changes(m.last, cur)
	m.last = cur
	if len(changes) == 0 {
		return false, nil
	}
	for _, c := range changes {
		m.log.Info("device change", zap.String("change", c))
	}
	return true, nil
}
