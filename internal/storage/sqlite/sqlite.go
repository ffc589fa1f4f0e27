// Package sqlitestorage implements the storage.Backend interface using
// SQLite. With no path configured the database lives in memory and is
// periodically dumped to disk via VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/internal/database"
	gormstorage "github.com/OCAP2/firecontrol/internal/storage/gorm"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend. The database is opened in Init.
func New(cfg config.SQLiteConfig, logger *slog.Logger) *Backend {
	return &Backend{
		cfg: cfg,
		log: logger,
	}
}

// inMemory reports whether the database is kept in memory with dumps.
func (b *Backend) inMemory() bool {
	return b.cfg.Path == ""
}

// Init opens the database, migrates it and starts the dump goroutine.
func (b *Backend) Init() error {
	db, err := database.OpenSQLite(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.log})
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.inMemory() && b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the DB.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
	}
	if b.inMemory() && b.cfg.DumpPath != "" {
		if err := b.Dump(); err != nil {
			b.log.Error("final dump failed", "path", b.cfg.DumpPath, "error", err)
		}
	}
	return b.Backend.Close()
}

// Dump writes the in-memory database to DumpPath.
func (b *Backend) Dump() error {
	if b.Backend == nil {
		return gormstorage.ErrNotInitialized
	}
	return database.DumpMemoryDBToDisk(b.DB(), b.cfg.DumpPath)
}

// RecordFireMission delegates to the GORM backend.
func (b *Backend) RecordFireMission(m *core.FireMission) error {
	if b.Backend == nil {
		return gormstorage.ErrNotInitialized
	}
	return b.Backend.RecordFireMission(m)
}

// RegisterWorld delegates to the GORM backend.
func (b *Backend) RegisterWorld(w *core.World) error {
	if b.Backend == nil {
		return gormstorage.ErrNotInitialized
	}
	return b.Backend.RegisterWorld(w)
}

// FireMissions delegates to the GORM backend.
func (b *Backend) FireMissions(f core.FireMissionFilter) ([]core.FireMission, error) {
	if b.Backend == nil {
		return nil, gormstorage.ErrNotInitialized
	}
	return b.Backend.FireMissions(f)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("error dumping to disk", "path", b.cfg.DumpPath, "error", err)
			} else {
				b.log.Debug("dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
			}
		}
	}
}
