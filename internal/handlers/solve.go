package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/firecontrol/internal/ballistics"
	"github.com/OCAP2/firecontrol/internal/dispatcher"
	"github.com/OCAP2/firecontrol/internal/firecontrol"
	"github.com/OCAP2/firecontrol/internal/geo"
	"github.com/OCAP2/firecontrol/internal/grid"
	"github.com/OCAP2/firecontrol/internal/mission"
	"github.com/OCAP2/firecontrol/internal/units"
	"github.com/OCAP2/firecontrol/internal/util"
	"github.com/OCAP2/firecontrol/internal/weapons"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// NoSolutionError carries the operator-facing reason a shot has no firing
// solution. It unwraps to the underlying grid or ballistics error.
type NoSolutionError struct {
	Reason string
	Err    error
}

func (e *NoSolutionError) Error() string { return e.Reason }

func (e *NoSolutionError) Unwrap() error { return e.Err }

// solveArgs indexes the :SOLVE: argument list.
const (
	argGunQuadrant = iota
	argGunSectors
	argGunElevation
	argTargetQuadrant
	argTargetSectors
	argTargetElevation
	argWeapon
	argRange
	argUnit
	argTrajectory
)

func parseEmplacement(quadrant, sectors, elevation string) (core.Emplacement, error) {
	secs, err := grid.ParseSectors(sectors)
	if err != nil {
		return core.Emplacement{}, err
	}
	elev, err := util.ParseFloat(elevation)
	if err != nil {
		return core.Emplacement{}, err
	}
	return core.Emplacement{Quadrant: strings.TrimSpace(quadrant), Sectors: secs, Elevation: elev}, nil
}

// applyArgs builds the state for a :SOLVE: call on top of base. Empty
// selector arguments keep the value from base.
func (s *Service) applyArgs(base firecontrol.State, args []string) (firecontrol.State, error) {
	if len(args) <= argTargetElevation {
		return base, fmt.Errorf("%w: need gun and target grid, got %d values", ErrMissingArgs, len(args))
	}

	gun, err := parseEmplacement(args[argGunQuadrant], args[argGunSectors], args[argGunElevation])
	if err != nil {
		return base, fmt.Errorf("gun: %w", err)
	}
	target, err := parseEmplacement(args[argTargetQuadrant], args[argTargetSectors], args[argTargetElevation])
	if err != nil {
		return base, fmt.Errorf("target: %w", err)
	}
	st := base.WithGun(gun).WithTarget(target)

	if name := util.Arg(args, argWeapon, ""); name != "" && !strings.EqualFold(name, st.Weapon.Name) {
		w, err := s.deps.Catalog.Lookup(name)
		if err != nil {
			return base, err
		}
		st = st.WithWeapon(w)
	}
	if name := util.Arg(args, argRange, ""); name != "" {
		r, err := weapons.ParseRange(name)
		if err != nil {
			return base, err
		}
		st = st.WithRange(r)
	}
	if name := util.Arg(args, argUnit, ""); name != "" {
		u, err := units.Lookup(name)
		if err != nil {
			return base, err
		}
		st = st.WithUnit(u)
	}
	if name := util.Arg(args, argTrajectory, ""); name != "" {
		t, err := ballistics.ParseTrajectory(name)
		if err != nil {
			return base, err
		}
		st = st.WithTrajectory(t)
	}
	return st, nil
}

// handleSolve answers [distance, bearing, angle, timeOnTarget, unit].
func (s *Service) handleSolve(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)

	st, err := s.ctx.Update(func(base firecontrol.State) (firecontrol.State, error) {
		return s.applyArgs(base, args)
	})
	if err != nil {
		return nil, err
	}

	// a new solution invalidates any running countdown
	s.stopCountdown()

	r := firecontrol.ComputeWith(st, s.deps.Cache.SolveTrajectory)
	s.ctx.Record(mission.Shot{State: st, Readout: r, At: s.deps.now()})
	if err := s.countSolution(st.Weapon.Name, r); err != nil {
		return nil, err
	}
	return readoutResult(r), nil
}

// handleSolvePosition solves between raw world positions:
// gun "x,y,z", target "x,y,z", muzzle velocity, unit[, trajectory].
func (s *Service) handleSolvePosition(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if len(args) < 3 {
		return nil, fmt.Errorf("%w: need gun, target and muzzle velocity", ErrMissingArgs)
	}

	gun, err := geo.ParsePosition(args[0])
	if err != nil {
		return nil, fmt.Errorf("gun: %w", err)
	}
	target, err := geo.ParsePosition(args[1])
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	v, err := util.ParseFloat(args[2])
	if err != nil {
		return nil, fmt.Errorf("muzzle velocity: %w", err)
	}

	st := s.ctx.State()
	unit := st.Unit
	if name := util.Arg(args, 3, ""); name != "" {
		if unit, err = units.Lookup(name); err != nil {
			return nil, err
		}
	}
	trajectory := st.Trajectory
	if name := util.Arg(args, 4, ""); name != "" {
		if trajectory, err = ballistics.ParseTrajectory(name); err != nil {
			return nil, err
		}
	}

	r := firecontrol.SolveWith(gun, target, v, trajectory, unit, s.deps.Cache.SolveTrajectory)
	if err := s.countSolution("position", r); err != nil {
		return nil, err
	}
	return readoutResult(r), nil
}

// handleState returns the stored state so a reopened dialog can restore it:
// [weapon, range, unit, trajectory, gunQuadrant, gunSectors, gunElevation,
// targetQuadrant, targetSectors, targetElevation].
func (s *Service) handleState(dispatcher.Event) (any, error) {
	st := s.ctx.State()
	return []any{
		st.Weapon.Name,
		st.Range.String(),
		st.Unit.Name,
		st.Trajectory.String(),
		st.Gun.Quadrant,
		grid.FormatSectors(st.Gun.Sectors),
		st.Gun.Elevation,
		st.Target.Quadrant,
		grid.FormatSectors(st.Target.Sectors),
		st.Target.Elevation,
	}, nil
}

func (s *Service) countSolution(weapon string, r firecontrol.Readout) error {
	attrs := metric.WithAttributes(attribute.String("weapon", weapon))
	if r.OK() {
		s.solved.Add(context.Background(), 1, attrs)
		s.logger().Debug("Solved",
			"weapon", weapon,
			"lineOfFire", geo.LineOfFire(r.Gun, r.Target).AsText(),
			"tof", r.TimeOnTarget,
		)
		return nil
	}
	s.unsolved.Add(context.Background(), 1, attrs)
	s.logger().Debug("No firing solution", "weapon", weapon, "reason", r.Reason())
	return &NoSolutionError{Reason: r.Reason(), Err: r.Err}
}

func readoutResult(r firecontrol.Readout) []any {
	return []any{r.Distance, r.Bearing, r.Angle, r.TimeOnTarget, r.Unit.Name}
}
