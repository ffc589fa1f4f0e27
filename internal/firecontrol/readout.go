package firecontrol

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/OCAP2/firecontrol/internal/ballistics"
	"github.com/OCAP2/firecontrol/internal/units"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// Readout is a solution prepared for display. When Err is set no firing data
// exists and the numeric display fields are zero.
type Readout struct {
	Solution       core.Solution
	MuzzleVelocity float64
	Unit           units.Unit
	Gun            core.Position
	Target         core.Position

	Distance     float64 // meters, one decimal
	Bearing      float64 // in Unit
	Angle        float64 // in Unit
	TimeOnTarget float64 // seconds, one decimal

	Err error
}

// OK reports whether the readout carries a firing solution.
func (r Readout) OK() bool {
	return r.Err == nil
}

// FlightTime returns the time on target as a duration.
func (r Readout) FlightTime() time.Duration {
	return time.Duration(r.Solution.TimeOnTarget * float64(time.Second))
}

// Reason is a short operator-facing explanation of a missing solution.
func (r Readout) Reason() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, ballistics.ErrOutOfRange):
		if r.Solution.Distance == 0 {
			return "gun and target share a position"
		}
		return fmt.Sprintf("out of range, %s m beyond maximum", strconv.FormatFloat(units.RoundTenth(r.Solution.Distance-ballistics.MaxRange(r.MuzzleVelocity, r.Gun.Elevation-r.Target.Elevation)), 'f', 1, 64))
	default:
		return r.Err.Error()
	}
}

// Fields returns distance, bearing, angle, time on target and unit name as
// display strings, or "-" placeholders when there is no solution.
func (r Readout) Fields() []string {
	if !r.OK() {
		return []string{"-", "-", "-", "-", r.Unit.Name}
	}
	return []string{
		strconv.FormatFloat(r.Distance, 'f', 1, 64),
		strconv.FormatFloat(r.Bearing, 'f', r.Unit.Decimals, 64),
		strconv.FormatFloat(r.Angle, 'f', r.Unit.Decimals, 64),
		strconv.FormatFloat(r.TimeOnTarget, 'f', 1, 64),
		r.Unit.Name,
	}
}

// SolverFunc computes the raw solution for a shot.
type SolverFunc func(gun, target core.Position, muzzleVelocity float64, trajectory ballistics.Trajectory) (core.Solution, error)

// Compute resolves both grid references and solves the shot for s.
func Compute(s State) Readout {
	return ComputeWith(s, ballistics.SolveTrajectory)
}

// ComputeWith is Compute with a custom solver, typically a memoised one.
func ComputeWith(s State, solve SolverFunc) Readout {
	r := Readout{Unit: s.Unit}

	v, err := s.Weapon.MuzzleVelocity(s.Range)
	if err != nil {
		r.Err = err
		return r
	}
	r.MuzzleVelocity = v

	if r.Gun, err = Position(s.Gun); err != nil {
		r.Err = fmt.Errorf("gun: %w", err)
		return r
	}
	if r.Target, err = Position(s.Target); err != nil {
		r.Err = fmt.Errorf("target: %w", err)
		return r
	}

	return SolveWith(r.Gun, r.Target, v, s.Trajectory, s.Unit, solve)
}

// Solve builds a readout from raw positions, skipping grid resolution.
func Solve(gun, target core.Position, muzzleVelocity float64, trajectory ballistics.Trajectory, unit units.Unit) Readout {
	return SolveWith(gun, target, muzzleVelocity, trajectory, unit, ballistics.SolveTrajectory)
}

// SolveWith is Solve with a custom solver.
func SolveWith(gun, target core.Position, muzzleVelocity float64, trajectory ballistics.Trajectory, unit units.Unit, solve SolverFunc) Readout {
	r := Readout{
		Unit:           unit,
		MuzzleVelocity: muzzleVelocity,
		Gun:            gun,
		Target:         target,
	}

	r.Solution, r.Err = solve(gun, target, muzzleVelocity, trajectory)
	if r.Err != nil {
		return r
	}

	r.Distance = units.RoundTenth(r.Solution.Distance)
	r.Bearing = unit.Convert(r.Solution.Bearing)
	r.Angle = unit.Convert(r.Solution.Angle)
	r.TimeOnTarget = units.RoundTenth(r.Solution.TimeOnTarget)
	return r
}

// FireMission records a solved readout with the state that produced it.
func (s State) FireMission(r Readout, worldName string, at time.Time) core.FireMission {
	return core.FireMission{
		Time:           at,
		WorldName:      worldName,
		Weapon:         s.Weapon.Name,
		Range:          s.Range.String(),
		MuzzleVelocity: r.MuzzleVelocity,
		Trajectory:     s.Trajectory.String(),
		GunGrid:        cloneEmplacement(s.Gun),
		TargetGrid:     cloneEmplacement(s.Target),
		Gun:            r.Gun,
		Target:         r.Target,
		Solution:       r.Solution,
	}
}
