package gormstorage

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/firecontrol/internal/database"
	"github.com/OCAP2/firecontrol/internal/model"
	"github.com/OCAP2/firecontrol/pkg/core"
)

var base = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	b := New(Dependencies{DB: db, Logger: slog.Default()})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func mission(weapon, world string, offset time.Duration) *core.FireMission {
	return &core.FireMission{
		Time:           base.Add(offset),
		WorldName:      world,
		Weapon:         weapon,
		Range:          "Medium",
		MuzzleVelocity: 240,
		Trajectory:     "high",
		GunGrid:        core.Emplacement{Quadrant: "000000", Sectors: []int{5, 5, 5}, Elevation: 12},
		TargetGrid:     core.Emplacement{Quadrant: "010000", Sectors: []int{7}, Elevation: 30},
		Gun:            core.NewPosition(50, 50, 12),
		Target:         core.NewPosition(1016.6666666666666, 83.33333333333333, 30),
		Solution:       core.Solution{Distance: 967.2, Bearing: 1.536, Angle: 1.48, TimeOnTarget: 48.1},
	}
}

func TestBackend_NotInitialized(t *testing.T) {
	b := New(Dependencies{})
	assert.True(t, errors.Is(b.Init(), ErrNotInitialized))
	assert.True(t, errors.Is(b.RecordFireMission(&core.FireMission{}), ErrNotInitialized))
	_, err := b.FireMissions(core.FireMissionFilter{})
	assert.True(t, errors.Is(err, ErrNotInitialized))
	assert.NoError(t, b.Close())
}

func TestRecordAndRead(t *testing.T) {
	b := newBackend(t)

	m := mission("M119A2", "Altis", 0)
	require.NoError(t, b.RecordFireMission(m))
	require.NotZero(t, m.ID)

	got, err := b.FireMissions(core.FireMissionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	g := got[0]
	assert.Equal(t, m.ID, g.ID)
	assert.True(t, m.Time.Equal(g.Time))
	assert.Equal(t, "altis", g.WorldName)
	assert.Equal(t, m.Weapon, g.Weapon)
	assert.Equal(t, m.GunGrid, g.GunGrid)
	assert.Equal(t, m.TargetGrid, g.TargetGrid)
	assert.Equal(t, m.Gun, g.Gun)
	assert.Equal(t, m.Target, g.Target)
	assert.Equal(t, m.Solution, g.Solution)
}

func TestWorldsAreShared(t *testing.T) {
	b := newBackend(t)

	require.NoError(t, b.RecordFireMission(mission("M252", "Altis", 0)))
	require.NoError(t, b.RecordFireMission(mission("M252", "altis", time.Second)))

	var worlds int64
	require.NoError(t, b.DB().Model(&model.World{}).Count(&worlds).Error)
	assert.Equal(t, int64(1), worlds)

	w := core.World{WorldName: "ALTIS"}
	require.NoError(t, b.RegisterWorld(&w))
	assert.NotZero(t, w.ID)
}

func TestRegisterWorld_StoresAnchor(t *testing.T) {
	b := newBackend(t)

	w := core.World{WorldName: "Stratis", DisplayName: "Stratis", WorldSize: 8192, Latitude: 39.7, Longitude: 25.2}
	require.NoError(t, b.RegisterWorld(&w))

	var row model.World
	require.NoError(t, b.DB().First(&row, w.ID).Error)
	assert.Equal(t, "stratis", row.WorldName)
	assert.Equal(t, float32(8192), row.WorldSize)
	assert.False(t, row.Location.IsEmpty())
}

func TestFireMissions_Filters(t *testing.T) {
	b := newBackend(t)

	require.NoError(t, b.RecordFireMission(mission("M119A2", "altis", 0)))
	require.NoError(t, b.RecordFireMission(mission("M252", "altis", time.Minute)))
	require.NoError(t, b.RecordFireMission(mission("M252", "stratis", 2*time.Minute)))
	require.NoError(t, b.RecordFireMission(mission("M119A2", "altis", 3*time.Minute)))

	all, err := b.FireMissions(core.FireMissionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []uint{4, 3, 2, 1}, ids(all))

	mortars, err := b.FireMissions(core.FireMissionFilter{Weapon: "m252"})
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 2}, ids(mortars))

	altis, err := b.FireMissions(core.FireMissionFilter{WorldName: "Altis", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []uint{4, 2}, ids(altis))

	recent, err := b.FireMissions(core.FireMissionFilter{Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, []uint{4, 3}, ids(recent))
}

func ids(ms []core.FireMission) []uint {
	out := make([]uint, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
