// Package handlers implements the commands the Arma mod sends through
// callExtension. Every handler takes the raw dispatcher event, cleans the
// SQF-quoted arguments and returns a value the a3interface package encodes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/OCAP2/firecontrol/internal/cache"
	"github.com/OCAP2/firecontrol/internal/dispatcher"
	"github.com/OCAP2/firecontrol/internal/geo"
	"github.com/OCAP2/firecontrol/internal/logging"
	"github.com/OCAP2/firecontrol/internal/mission"
	"github.com/OCAP2/firecontrol/internal/storage"
	"github.com/OCAP2/firecontrol/internal/units"
	"github.com/OCAP2/firecontrol/internal/util"
	"github.com/OCAP2/firecontrol/internal/weapons"
	"github.com/OCAP2/firecontrol/pkg/core"
)

var (
	// ErrNoStorage is returned by mission commands when no backend is set.
	ErrNoStorage = errors.New("storage not initialized")
	// ErrNoShot is returned when there is no solved shot to act on.
	ErrNoShot = errors.New("no fire mission solved yet")
	// ErrMissingArgs is returned when a command gets fewer arguments than it needs.
	ErrMissingArgs = errors.New("missing arguments")
)

// recordQueueSize bounds fire missions waiting to be written to storage.
const recordQueueSize = 64

// recordCommand writes queued fire missions on the dispatcher's buffer.
const recordCommand = ":MISSION:RECORD:"

// CallbackFunc raises an ExtensionCallback event in Arma.
type CallbackFunc func(function string, data ...string) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	LogManager       *logging.SlogManager
	Catalog          *weapons.Catalog
	Cache            *cache.SolutionCache
	Meter            metric.Meter
	Callback         CallbackFunc
	AlertOffset      time.Duration
	ExtensionName    string
	ExtensionVersion string
	BuildDate        string

	// countdown step period, only shortened in tests
	tickInterval time.Duration
	now          func() time.Time
}

// Service provides the fire direction commands
type Service struct {
	deps         Dependencies
	ctx          *mission.Context
	writeLogFunc func(functionName, data, level string)

	mu      sync.RWMutex
	backend storage.Backend

	countdownMu     sync.Mutex
	cancelCountdown context.CancelFunc
	countdownDone   chan struct{}

	solved   metric.Int64Counter
	unsolved metric.Int64Counter
	recorded metric.Int64Counter
}

// NewService creates a new handler service
func NewService(deps Dependencies, ctx *mission.Context) (*Service, error) {
	if deps.Catalog == nil {
		deps.Catalog = weapons.NewCatalog()
	}
	if deps.Cache == nil {
		c, err := cache.NewSolutionCache(cache.DefaultSize)
		if err != nil {
			return nil, err
		}
		deps.Cache = c
	}
	if deps.Meter == nil {
		deps.Meter = noop.Meter{}
	}
	if deps.now == nil {
		deps.now = time.Now
	}

	s := &Service{
		deps: deps,
		ctx:  ctx,
	}
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}

	var err error
	if s.solved, err = deps.Meter.Int64Counter(
		"firecontrol.solutions",
		metric.WithDescription("Shots solved with a firing solution"),
	); err != nil {
		return nil, fmt.Errorf("creating solutions counter: %w", err)
	}
	if s.unsolved, err = deps.Meter.Int64Counter(
		"firecontrol.solutions.missing",
		metric.WithDescription("Shots that could not be solved"),
	); err != nil {
		return nil, fmt.Errorf("creating missing solutions counter: %w", err)
	}
	if s.recorded, err = deps.Meter.Int64Counter(
		"firecontrol.firemissions.recorded",
		metric.WithDescription("Fire missions written to storage"),
	); err != nil {
		return nil, fmt.Errorf("creating recorded counter: %w", err)
	}

	return s, nil
}

// GetMissionContext returns the session context
func (s *Service) GetMissionContext() *mission.Context {
	return s.ctx
}

// SetBackend sets the storage backend fire missions are logged to and
// returns the one it replaces.
func (s *Service) SetBackend(b storage.Backend) storage.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.backend
	s.backend = b
	return prev
}

func (s *Service) getBackend() storage.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager == nil {
		return slog.Default()
	}
	return s.deps.LogManager.Logger()
}

// Register adds every command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", s.handleVersion)
	d.Register(":UNITS:", s.handleUnits)
	d.Register(":WEAPONS:", s.handleWeapons)
	d.Register(":RANGES:", s.handleRanges)
	d.Register(":WORLD:", s.handleWorld, dispatcher.Logged())

	d.Register(":SOLVE:", s.handleSolve)
	d.Register(":SOLVE:POS:", s.handleSolvePosition)
	d.Register(":STATE:", s.handleState)

	d.Register(":COUNTDOWN:", s.handleCountdown, dispatcher.Logged())
	d.Register(":COUNTDOWN:STOP:", s.handleCountdownStop)

	d.Register(recordCommand, s.handleRecord, dispatcher.Buffered(recordQueueSize), dispatcher.Logged())
	d.Register(":MISSION:LOG:", func(e dispatcher.Event) (any, error) {
		return s.handleLog(d, e)
	}, dispatcher.Logged())
	d.Register(":MISSION:LIST:", s.handleList)
}

func (s *Service) handleVersion(dispatcher.Event) (any, error) {
	return []string{s.deps.ExtensionVersion, s.deps.BuildDate}, nil
}

func (s *Service) handleUnits(dispatcher.Event) (any, error) {
	return units.Names(), nil
}

func (s *Service) handleRanges(dispatcher.Event) (any, error) {
	out := make([]string, 0, len(weapons.Ranges()))
	for _, r := range weapons.Ranges() {
		out = append(out, r.String())
	}
	return out, nil
}

// handleWeapons returns [name, [velocities...], defaultUnit] per weapon.
func (s *Service) handleWeapons(dispatcher.Event) (any, error) {
	all := s.deps.Catalog.All()
	out := make([][]any, 0, len(all))
	for _, w := range all {
		out = append(out, []any{w.Name, w.MuzzleVelocities, w.DefaultUnit.Name})
	}
	return out, nil
}

// worldJSON is the world description the mod sends on mission start.
type worldJSON struct {
	WorldName   string  `json:"worldName"`
	DisplayName string  `json:"displayName"`
	WorldSize   float32 `json:"worldSize"`
	Latitude    float32 `json:"latitude"`
	Longitude   float32 `json:"longitude"`
}

type worldRegistrar interface {
	RegisterWorld(w *core.World) error
}

func (s *Service) handleWorld(e dispatcher.Event) (any, error) {
	functionName := ":WORLD:"
	args := util.CleanArgs(e.Args)
	if len(args) < 1 {
		return nil, fmt.Errorf("%w: world data", ErrMissingArgs)
	}

	var wj worldJSON
	if err := json.Unmarshal([]byte(args[0]), &wj); err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error unmarshalling world data: %v`, err), "ERROR")
		return nil, fmt.Errorf("decoding world: %w", err)
	}
	if wj.WorldName == "" {
		return nil, fmt.Errorf("%w: worldName", ErrMissingArgs)
	}

	world := core.World{
		WorldName:   wj.WorldName,
		DisplayName: wj.DisplayName,
		WorldSize:   wj.WorldSize,
		Latitude:    wj.Latitude,
		Longitude:   wj.Longitude,
	}

	if r, ok := s.getBackend().(worldRegistrar); ok {
		if err := r.RegisterWorld(&world); err != nil {
			s.logger().Error("Failed to register world", "worldName", world.WorldName, "error", err)
			return nil, err
		}
	}
	s.ctx.SetWorld(world)

	anchor := geo.WorldAnchor(float64(world.Longitude), float64(world.Latitude))
	s.logger().Info("World set", "worldName", world.WorldName, "anchor", anchor.AsText())
	return "ok", nil
}
