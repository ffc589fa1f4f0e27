// Package memory keeps the fire mission log in memory and exports it to a
// JSON or msgpack file when closed.
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// Backend stores fire missions in memory and exports them on Close
type Backend struct {
	cfg      config.MemoryConfig
	started  time.Time
	missions []core.FireMission

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init marks the start of the session; the export file is named after it.
func (b *Backend) Init() error {
	if !validFormat(b.cfg.Format) {
		return fmt.Errorf("unknown export format: %s", b.cfg.Format)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = time.Now().UTC()
	return nil
}

// Close exports the recorded missions when an output directory is set and
// anything was recorded.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.OutputDir == "" || len(b.missions) == 0 {
		return nil
	}
	return b.exportFile()
}

// RecordFireMission stores a copy of m and assigns its ID.
func (b *Backend) RecordFireMission(m *core.FireMission) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	m.ID = b.idCounter

	stored := *m
	stored.GunGrid.Sectors = append([]int(nil), m.GunGrid.Sectors...)
	stored.TargetGrid.Sectors = append([]int(nil), m.TargetGrid.Sectors...)
	b.missions = append(b.missions, stored)
	return nil
}

// FireMissions returns matching missions, newest first.
func (b *Backend) FireMissions(f core.FireMissionFilter) ([]core.FireMission, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.FireMission, 0, len(b.missions))
	for _, m := range b.missions {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ID > out[j].ID
		}
		return out[i].Time.After(out[j].Time)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ExportedFilePath returns the path of the last export, or "" if none.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
