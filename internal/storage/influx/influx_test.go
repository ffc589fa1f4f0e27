package influx

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/pkg/core"
)

func sample() core.FireMission {
	return core.FireMission{
		ID:             3,
		Time:           time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		WorldName:      "altis",
		Weapon:         "M119A2",
		Range:          "Long",
		MuzzleVelocity: 390,
		Trajectory:     "high",
		GunGrid:        core.Emplacement{Quadrant: "000000", Sectors: []int{5, 5}, Elevation: 10},
		TargetGrid:     core.Emplacement{Quadrant: "010000", Elevation: 20},
		Gun:            core.NewPosition(50, 50, 10),
		Target:         core.NewPosition(1050, 50, 20),
		Solution:       core.Solution{Distance: 1000, Bearing: 1.5707963267948966, Angle: 1.53, TimeOnTarget: 79.5},
	}
}

func unreachable(backup string) config.InfluxConfig {
	return config.InfluxConfig{
		Protocol:   "http",
		Host:       "127.0.0.1",
		Port:       "1",
		Org:        "firecontrol",
		Bucket:     "fire_missions",
		BackupPath: backup,
	}
}

func TestMissionPoint(t *testing.T) {
	p := MissionPoint(sample())

	assert.Equal(t, Measurement, p.Name())
	assert.Equal(t, sample().Time, p.Time())

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{
		"weapon":     "M119A2",
		"range":      "Long",
		"trajectory": "high",
		"world":      "altis",
	}, tags)

	fields := map[string]any{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	assert.Equal(t, "55", fields["gunSectors"])
	assert.Equal(t, "", fields["targetSectors"])
	assert.Equal(t, 1000.0, fields["distance"])
}

func TestMissionPoint_SkipsEmptyTags(t *testing.T) {
	m := sample()
	m.WorldName = ""
	for _, tag := range MissionPoint(m).TagList() {
		assert.NotEqual(t, "world", tag.Key)
	}
}

func TestMissionFromValues(t *testing.T) {
	in := sample()
	values := map[string]any{
		"id":              int64(3),
		"world":           "altis",
		"weapon":          "M119A2",
		"range":           "Long",
		"trajectory":      "high",
		"muzzleVelocity":  390.0,
		"gunQuadrant":     "000000",
		"gunSectors":      "55",
		"gunElevation":    10.0,
		"targetQuadrant":  "010000",
		"targetSectors":   "",
		"targetElevation": 20.0,
		"gunX":            50.0,
		"gunY":            50.0,
		"gunZ":            10.0,
		"targetX":         1050.0,
		"targetY":         50.0,
		"targetZ":         20.0,
		"distance":        1000.0,
		"bearing":         1.5707963267948966,
		"angle":           1.53,
		"timeOnTarget":    79.5,
	}

	assert.Equal(t, in, MissionFromValues(in.Time, values))
}

func TestFluxQuery(t *testing.T) {
	q := FluxQuery("fire_missions", time.Time{})
	assert.Contains(t, q, `from(bucket: "fire_missions")`)
	assert.Contains(t, q, "range(start: 0)")
	assert.Contains(t, q, `r._measurement == "fire_mission"`)
	assert.Contains(t, q, "pivot(")

	since := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	assert.Contains(t, FluxQuery("b", since), "range(start: 2026-10-18T00:00:00Z)")
}

func TestBackend_BeforeInit(t *testing.T) {
	b := New(unreachable(""), slog.Default())
	assert.True(t, errors.Is(b.RecordFireMission(&core.FireMission{}), ErrNotInitialized))
	_, err := b.FireMissions(core.FireMissionFilter{})
	assert.True(t, errors.Is(err, ErrNotInitialized))
	assert.NoError(t, b.Close())
}

func TestBackend_UnreachableNoBackup(t *testing.T) {
	b := New(unreachable(""), slog.Default())
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backup path configured")
	assert.NoError(t, b.Close())
}

func TestBackend_BackupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "backup.lp.gz")
	b := New(unreachable(path), slog.Default())
	require.NoError(t, b.Init())
	assert.False(t, b.Online())

	first := sample()
	second := sample()
	second.Weapon = "M252"
	require.NoError(t, b.RecordFireMission(&first))
	require.NoError(t, b.RecordFireMission(&second))
	assert.Equal(t, uint(1), first.ID)
	assert.Equal(t, uint(2), second.ID)

	_, err := b.FireMissions(core.FireMissionFilter{})
	assert.True(t, errors.Is(err, ErrOffline))

	require.NoError(t, b.Close())

	lines, err := BackupLines(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "fire_mission,"))
	assert.Contains(t, lines[0], "weapon=M119A2")
	assert.Contains(t, lines[1], "weapon=M252")
}
