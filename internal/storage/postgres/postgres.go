// Package postgres implements the storage.Backend interface using GORM/PostgreSQL.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/internal/database"
	gormstorage "github.com/OCAP2/firecontrol/internal/storage/gorm"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// Backend connects to Postgres in Init and delegates to the GORM backend.
type Backend struct {
	gorm *gormstorage.Backend
	cfg  config.PostgresConfig
	log  *slog.Logger
}

// New creates a new Postgres storage backend.
func New(cfg config.PostgresConfig, logger *slog.Logger) *Backend {
	return &Backend{cfg: cfg, log: logger}
}

// Init connects and migrates the schema.
func (b *Backend) Init() error {
	db, err := database.OpenPostgres(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres DB: %w", err)
	}
	b.gorm = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.log})
	if err := b.gorm.Init(); err != nil {
		return err
	}
	b.log.Info("connected to database", "host", b.cfg.Host, "database", b.cfg.Database)
	return nil
}

func (b *Backend) Close() error {
	if b.gorm == nil {
		return nil
	}
	return b.gorm.Close()
}

func (b *Backend) RecordFireMission(m *core.FireMission) error {
	if b.gorm == nil {
		return gormstorage.ErrNotInitialized
	}
	return b.gorm.RecordFireMission(m)
}

func (b *Backend) FireMissions(f core.FireMissionFilter) ([]core.FireMission, error) {
	if b.gorm == nil {
		return nil, gormstorage.ErrNotInitialized
	}
	return b.gorm.FireMissions(f)
}

func (b *Backend) RegisterWorld(w *core.World) error {
	if b.gorm == nil {
		return gormstorage.ErrNotInitialized
	}
	return b.gorm.RegisterWorld(w)
}
