// Package gormstorage implements storage.Backend on top of any GORM
// dialect. The sqlite and postgres backends wrap it and only differ in how
// the connection is opened and kept.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/OCAP2/firecontrol/internal/database"
	"github.com/OCAP2/firecontrol/internal/model"
	"github.com/OCAP2/firecontrol/internal/model/convert"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// ErrNotInitialized is returned when the backend is used before Init.
var ErrNotInitialized = errors.New("storage not initialized")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies

	mu     sync.Mutex
	worlds map[string]uint // world name -> row ID
	ready  bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps:   deps,
		worlds: make(map[string]uint),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNotInitialized
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.mu.Lock()
	b.ready = true
	b.mu.Unlock()
	b.deps.Logger.Info("fire mission schema ready", "dialect", b.deps.DB.Dialector.Name())
	return nil
}

// Close releases the connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.ready = false
	b.mu.Unlock()
	if b.deps.DB == nil {
		return nil
	}
	return database.Close(b.deps.DB)
}

// World names are stored lowercase so "Altis" and "altis" share a row.

// RegisterWorld stores w if no world of the same name exists and sets its ID.
func (b *Backend) RegisterWorld(w *core.World) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, err := b.worldIDLocked(*w)
	if err != nil {
		return err
	}
	w.ID = id
	return nil
}

func (b *Backend) worldIDLocked(w core.World) (uint, error) {
	key := strings.ToLower(w.WorldName)
	if id, ok := b.worlds[key]; ok {
		return id, nil
	}
	row := convert.CoreToWorld(w)
	row.WorldName = key
	created, err := row.GetOrInsert(b.deps.DB)
	if err != nil {
		return 0, fmt.Errorf("registering world %q: %w", w.WorldName, err)
	}
	if created {
		b.deps.Logger.Debug("world registered", "world", key, "id", row.ID)
	}
	b.worlds[key] = row.ID
	return row.ID, nil
}

// RecordFireMission inserts m and assigns its ID.
func (b *Backend) RecordFireMission(m *core.FireMission) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return ErrNotInitialized
	}

	worldID, err := b.worldIDLocked(core.World{WorldName: m.WorldName})
	if err != nil {
		return err
	}

	row := convert.CoreToFireMission(*m, worldID)
	row.ID = 0
	if err := b.deps.DB.Omit("World").Create(&row).Error; err != nil {
		return fmt.Errorf("inserting fire mission: %w", err)
	}
	m.ID = row.ID
	return nil
}

// FireMissions returns matching missions, newest first.
func (b *Backend) FireMissions(f core.FireMissionFilter) ([]core.FireMission, error) {
	b.mu.Lock()
	ready := b.ready
	b.mu.Unlock()
	if !ready {
		return nil, ErrNotInitialized
	}

	q := b.deps.DB.Model(&model.FireMission{}).
		Joins("World").
		Order("fire_missions.time DESC").
		Order("fire_missions.id DESC")
	if f.WorldName != "" {
		q = q.Where(`"World".world_name = ?`, strings.ToLower(f.WorldName))
	}
	if f.Weapon != "" {
		q = q.Where("LOWER(fire_missions.weapon) = ?", strings.ToLower(f.Weapon))
	}
	if !f.Since.IsZero() {
		q = q.Where("fire_missions.time >= ?", f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []model.FireMission
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying fire missions: %w", err)
	}

	out := make([]core.FireMission, 0, len(rows))
	for _, r := range rows {
		m, err := convert.FireMissionToCore(r)
		if err != nil {
			return nil, fmt.Errorf("fire mission %d: %w", r.ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}
