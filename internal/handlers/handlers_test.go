package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/firecontrol/internal/ballistics"
	"github.com/OCAP2/firecontrol/internal/cache"
	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/internal/database"
	"github.com/OCAP2/firecontrol/internal/dispatcher"
	"github.com/OCAP2/firecontrol/internal/firecontrol"
	"github.com/OCAP2/firecontrol/internal/logging"
	"github.com/OCAP2/firecontrol/internal/mission"
	gormstorage "github.com/OCAP2/firecontrol/internal/storage/gorm"
	"github.com/OCAP2/firecontrol/internal/storage/memory"
	"github.com/OCAP2/firecontrol/internal/units"
	"github.com/OCAP2/firecontrol/internal/weapons"
	"github.com/OCAP2/firecontrol/pkg/core"
)

type callbackRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callbackRecorder) record(function string, data ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, function)
	return nil
}

func (r *callbackRecorder) functions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestService(t *testing.T, mutate ...func(*Dependencies)) (*Service, *dispatcher.Dispatcher) {
	t.Helper()

	logManager := logging.NewSlogManager()
	logManager.Setup(nil, "error", nil)

	c, err := cache.NewSolutionCache(16)
	require.NoError(t, err)

	deps := Dependencies{
		LogManager:       logManager,
		Catalog:          weapons.NewCatalog(),
		Cache:            c,
		AlertOffset:      15 * time.Second,
		ExtensionName:    "firecontrol",
		ExtensionVersion: "1.0.0",
		BuildDate:        "2026-10-01",
		now:              func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) },
	}
	for _, m := range mutate {
		m(&deps)
	}

	svc, err := NewService(deps, mission.NewContext(firecontrol.DefaultState()))
	require.NoError(t, err)

	d, err := dispatcher.New(logging.NewDispatcherLogger(slog.Default()))
	require.NoError(t, err)
	svc.Register(d)

	t.Cleanup(func() {
		svc.Close()
		d.Close()
	})
	return svc, d
}

func call(d *dispatcher.Dispatcher, command string, args ...string) (any, error) {
	return d.Dispatch(dispatcher.Event{Command: command, Args: args})
}

// quoted mimics how Arma passes string arguments to RVExtensionArgs.
func quoted(args ...string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = `"` + a + `"`
	}
	return out
}

func TestRegister_Commands(t *testing.T) {
	_, d := newTestService(t)

	for _, cmd := range []string{
		":VERSION:", ":UNITS:", ":WEAPONS:", ":RANGES:", ":WORLD:",
		":SOLVE:", ":SOLVE:POS:", ":STATE:",
		":COUNTDOWN:", ":COUNTDOWN:STOP:",
		":MISSION:LOG:", ":MISSION:RECORD:", ":MISSION:LIST:",
	} {
		assert.True(t, d.HasHandler(cmd), cmd)
	}
}

func TestStaticQueries(t *testing.T) {
	_, d := newTestService(t)

	v, err := call(d, ":VERSION:")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0", "2026-10-01"}, v)

	u, err := call(d, ":UNITS:")
	require.NoError(t, err)
	assert.Equal(t, units.Names(), u)

	r, err := call(d, ":RANGES:")
	require.NoError(t, err)
	assert.Equal(t, []string{"Short", "Medium", "Long"}, r)

	w, err := call(d, ":WEAPONS:")
	require.NoError(t, err)
	rows := w.([][]any)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"M119A2", []float64{152.5, 240, 390}, "deg"}, rows[0])
	assert.Equal(t, "M252", rows[1][0])
}

func TestSolve_MatchesCompute(t *testing.T) {
	svc, d := newTestService(t)

	got, err := call(d, ":SOLVE:", quoted("000000", "", "0", "010000", "", "0", "M119A2", "Short", "deg")...)
	require.NoError(t, err)

	want := firecontrol.Compute(firecontrol.DefaultState().
		WithGun(core.Emplacement{Quadrant: "000000"}).
		WithTarget(core.Emplacement{Quadrant: "010000"}))
	require.True(t, want.OK())
	assert.Equal(t, []any{want.Distance, want.Bearing, want.Angle, want.TimeOnTarget, "deg"}, got)
	assert.Equal(t, 1000.0, want.Distance)
	assert.Equal(t, 90.0, want.Bearing)

	shot, ok := svc.GetMissionContext().LastShot()
	require.True(t, ok)
	assert.Equal(t, "010000", shot.State.Target.Quadrant)
	assert.Equal(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), shot.At)
}

func TestSolve_SelectorDefaults(t *testing.T) {
	svc, d := newTestService(t)

	_, err := call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0", "", "", "mrad")
	require.NoError(t, err)
	assert.Equal(t, units.Mrad, svc.GetMissionContext().State().Unit)

	// same weapon again keeps the chosen unit
	got, err := call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0", "M119A2")
	require.NoError(t, err)
	assert.Equal(t, "mrad", got.([]any)[4])

	// switching weapon resets to its default unit
	got, err = call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0", "m252", "long")
	require.NoError(t, err)
	assert.Equal(t, "NATO mrad", got.([]any)[4])

	st := svc.GetMissionContext().State()
	assert.Equal(t, weapons.Long, st.Range)
	assert.Equal(t, "M252", st.Weapon.Name)
}

func TestSolve_LowTrajectory(t *testing.T) {
	_, d := newTestService(t)

	high, err := call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0", "M119A2", "Medium", "deg", "high")
	require.NoError(t, err)
	low, err := call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0", "M119A2", "Medium", "deg", "low")
	require.NoError(t, err)

	assert.Greater(t, high.([]any)[2].(float64), 45.0)
	assert.Less(t, low.([]any)[2].(float64), 45.0)
}

func TestSolve_OutOfRange(t *testing.T) {
	svc, d := newTestService(t)

	_, err := call(d, ":SOLVE:", "000000", "", "0", "900900", "", "0", "M119A2", "Short", "deg")
	require.Error(t, err)

	var nse *NoSolutionError
	require.True(t, errors.As(err, &nse))
	assert.True(t, errors.Is(err, ballistics.ErrOutOfRange))
	assert.Contains(t, err.Error(), "out of range")

	_, ok := svc.GetMissionContext().LastShot()
	assert.False(t, ok)
	assert.Equal(t, "900900", svc.GetMissionContext().State().Target.Quadrant, "input is kept")
}

func TestSolve_FailedSolveClearsShot(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())

	svc, d := newTestService(t)
	svc.SetBackend(backend)

	_, err := call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0", "M119A2", "Short", "deg")
	require.NoError(t, err)
	_, ok := svc.GetMissionContext().LastShot()
	require.True(t, ok)

	_, err = call(d, ":SOLVE:", "000000", "", "0", "900900", "", "0", "M119A2", "Short", "deg")
	require.ErrorIs(t, err, ballistics.ErrOutOfRange)

	_, err = call(d, ":COUNTDOWN:")
	assert.ErrorIs(t, err, ErrNoShot, "countdown must not run on the previous solution")

	_, err = call(d, ":MISSION:LOG:")
	assert.ErrorIs(t, err, ErrNoShot, "mission log must not record the previous solution")

	missions, err := backend.FireMissions(core.FireMissionFilter{})
	require.NoError(t, err)
	assert.Empty(t, missions)
}

func TestSolve_BadInput(t *testing.T) {
	_, d := newTestService(t)

	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"too few args", []string{"000000", "", "0"}, "missing arguments"},
		{"bad sectors", []string{"000000", "70", "0", "010000", "", "0"}, "gun: invalid sector"},
		{"bad elevation", []string{"000000", "", "x", "010000", "", "0"}, `gun: invalid number "x"`},
		{"bad quadrant", []string{"000000", "", "0", "01000", "", "0"}, "target:"},
		{"unknown weapon", []string{"000000", "", "0", "010000", "", "0", "M777"}, "unknown weapon"},
		{"unknown range", []string{"000000", "", "0", "010000", "", "0", "", "huge"}, "unknown range"},
		{"unknown unit", []string{"000000", "", "0", "010000", "", "0", "", "", "gradians"}, "unknown unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(d, ":SOLVE:", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSolve_UsesCache(t *testing.T) {
	svc, d := newTestService(t)

	for i := 0; i < 3; i++ {
		_, err := call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0")
		require.NoError(t, err)
	}
	hits, misses := svc.deps.Cache.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestSolvePosition(t *testing.T) {
	_, d := newTestService(t)

	got, err := call(d, ":SOLVE:POS:", "[0,0,0]", "[0,1000,0]", "240", "deg", "low")
	require.NoError(t, err)
	row := got.([]any)
	assert.Equal(t, 1000.0, row[0])
	assert.Equal(t, 0.0, row[1])
	assert.Less(t, row[2].(float64), 45.0)
	assert.Equal(t, "deg", row[4])

	_, err = call(d, ":SOLVE:POS:", "0,0", "1,2")
	assert.ErrorIs(t, err, ErrMissingArgs)

	_, err = call(d, ":SOLVE:POS:", "a,b", "0,1000", "240")
	assert.ErrorContains(t, err, "gun:")

	_, err = call(d, ":SOLVE:POS:", "0,0,0", "0,1000,0", "0")
	assert.ErrorIs(t, err, ballistics.ErrInvalidInput)
}

func TestState(t *testing.T) {
	_, d := newTestService(t)

	_, err := call(d, ":SOLVE:", "012045", "795", "35.5", "015047", "1", "0", "M252", "Medium", "mrad", "low")
	require.NoError(t, err)

	got, err := call(d, ":STATE:")
	require.NoError(t, err)
	assert.Equal(t, []any{"M252", "Medium", "mrad", "low", "012045", "795", 35.5, "015047", "1", 0.0}, got)
}

func TestWorld(t *testing.T) {
	db, err := database.OpenSQLite("")
	require.NoError(t, err)
	backend := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: slog.Default()})
	require.NoError(t, backend.Init())
	t.Cleanup(func() { _ = backend.Close() })

	svc, d := newTestService(t)
	svc.SetBackend(backend)

	_, err = call(d, ":WORLD:", `"{""worldName"":""Altis"",""displayName"":""Altis"",""worldSize"":30720,""latitude"":-40,""longitude"":30}"`)
	require.NoError(t, err)

	w := svc.GetMissionContext().GetWorld()
	assert.Equal(t, "Altis", w.WorldName)
	assert.Equal(t, float32(30720), w.WorldSize)
	assert.NotZero(t, w.ID)

	_, err = call(d, ":WORLD:", "not json")
	assert.ErrorContains(t, err, "decoding world")

	_, err = call(d, ":WORLD:", `{"displayName":"x"}`)
	assert.ErrorIs(t, err, ErrMissingArgs)

	_, err = call(d, ":WORLD:")
	assert.ErrorIs(t, err, ErrMissingArgs)
}

func TestMissionLogAndList(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())

	svc, d := newTestService(t)
	svc.SetBackend(backend)
	svc.GetMissionContext().SetWorld(core.World{WorldName: "Altis"})

	_, err := call(d, ":MISSION:LOG:")
	assert.ErrorIs(t, err, ErrNoShot)

	_, err = call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0")
	require.NoError(t, err)

	res, err := call(d, ":MISSION:LOG:")
	require.NoError(t, err)
	assert.Equal(t, dispatcher.Queued, res)

	// drain the record queue
	d.Close()

	got, err := call(d, ":MISSION:LIST:")
	require.NoError(t, err)
	rows := got.([][]any)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, uint(1), row[0])
	assert.Equal(t, "2026-10-01T12:00:00Z", row[1])
	assert.Equal(t, "Altis", row[2])
	assert.Equal(t, "M119A2", row[3])
	assert.Equal(t, "Short", row[4])
	assert.Equal(t, "high", row[5])
	assert.Equal(t, 1000.0, row[6])
	assert.Equal(t, 90.0, row[7])
	assert.Equal(t, "deg", row[10])

	missions, err := backend.FireMissions(core.FireMissionFilter{})
	require.NoError(t, err)
	require.Len(t, missions, 1)
	assert.Equal(t, []int(nil), missions[0].GunGrid.Sectors)
	assert.InDelta(t, 1000, missions[0].Solution.Distance, 1e-9)
}

func TestCloseStorage_DrainsRecordQueue(t *testing.T) {
	dir := t.TempDir()
	backend := memory.New(config.MemoryConfig{OutputDir: dir, Format: memory.FormatJSON})
	require.NoError(t, backend.Init())

	svc, d := newTestService(t)
	svc.SetBackend(backend)
	svc.GetMissionContext().SetWorld(core.World{WorldName: "Altis"})

	_, err := call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		res, err := call(d, ":MISSION:LOG:")
		require.NoError(t, err)
		assert.Equal(t, dispatcher.Queued, res)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	path, err := svc.CloseStorage(ctx, d)
	require.NoError(t, err)
	require.Equal(t, backend.ExportedFilePath(), path)
	require.NotEmpty(t, path)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var exported memory.FireMissionLog
	require.NoError(t, json.Unmarshal(data, &exported))
	require.Len(t, exported.Missions, 3)
	for _, m := range exported.Missions {
		assert.Equal(t, "M119A2", m.Weapon)
		assert.Equal(t, "Altis", m.WorldName)
		assert.InDelta(t, 1000, m.Distance, 1e-9)
	}

	_, err = call(d, ":MISSION:LOG:")
	assert.ErrorIs(t, err, ErrNoStorage, "backend is detached after close")

	path, err = svc.CloseStorage(ctx, d)
	require.NoError(t, err)
	assert.Empty(t, path, "closing twice is a no-op")
}

func TestMissionList_Filters(t *testing.T) {
	backend := memory.New(config.MemoryConfig{})
	require.NoError(t, backend.Init())
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i, w := range []string{"M119A2", "M252", "M252"} {
		require.NoError(t, backend.RecordFireMission(&core.FireMission{
			Time: base.Add(time.Duration(i) * time.Minute), Weapon: w, WorldName: "Altis",
		}))
	}

	svc, d := newTestService(t)
	svc.SetBackend(backend)

	got, err := call(d, ":MISSION:LIST:", "1", "m252")
	require.NoError(t, err)
	rows := got.([][]any)
	require.Len(t, rows, 1)
	assert.Equal(t, uint(3), rows[0][0])

	got, err = call(d, ":MISSION:LIST:", "", "", "stratis")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = call(d, ":MISSION:LIST:", "-1")
	assert.ErrorContains(t, err, "invalid limit")
}

func TestMission_NoStorage(t *testing.T) {
	_, d := newTestService(t)

	_, err := call(d, ":MISSION:LIST:")
	assert.ErrorIs(t, err, ErrNoStorage)
	_, err = call(d, ":MISSION:LOG:")
	assert.ErrorIs(t, err, ErrNoStorage)
	_, err = (&Service{}).handleRecord(dispatcher.Event{Args: []string{"{}"}})
	assert.ErrorIs(t, err, ErrNoStorage)
}

func TestCountdown_RunsToSplash(t *testing.T) {
	rec := &callbackRecorder{}
	_, d := newTestService(t, func(deps *Dependencies) {
		deps.Callback = rec.record
		deps.tickInterval = time.Millisecond
	})

	_, err := call(d, ":COUNTDOWN:")
	assert.ErrorIs(t, err, ErrNoShot)

	_, err = call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0")
	require.NoError(t, err)

	tof, err := call(d, ":COUNTDOWN:")
	require.NoError(t, err)
	assert.Greater(t, tof.(float64), 15.0)

	require.Eventually(t, func() bool {
		calls := rec.functions()
		return len(calls) > 0 && calls[len(calls)-1] == CallbackSplash
	}, 5*time.Second, 5*time.Millisecond)

	calls := rec.functions()
	assert.Contains(t, calls, CallbackTick)
	alerts := 0
	for _, c := range calls {
		if c == CallbackAlert {
			alerts++
		}
	}
	assert.Equal(t, 1, alerts)
}

func TestCountdown_StoppedBySolve(t *testing.T) {
	rec := &callbackRecorder{}
	svc, d := newTestService(t, func(deps *Dependencies) {
		deps.Callback = rec.record
		deps.tickInterval = time.Hour
	})

	_, err := call(d, ":SOLVE:", "000000", "", "0", "010000", "", "0")
	require.NoError(t, err)
	_, err = call(d, ":COUNTDOWN:")
	require.NoError(t, err)

	_, err = call(d, ":SOLVE:", "000000", "", "0", "020000", "", "0")
	require.NoError(t, err)

	svc.countdownMu.Lock()
	running := svc.cancelCountdown != nil
	svc.countdownMu.Unlock()
	assert.False(t, running)
	assert.NotContains(t, rec.functions(), CallbackSplash)

	res, err := call(d, ":COUNTDOWN:STOP:")
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}
