// Package firecontrol holds the fire direction state a user edits and turns it
// into display-ready readouts. State values are never mutated in place; every
// With method returns a new State.
package firecontrol

import (
	"fmt"
	"slices"

	"github.com/OCAP2/firecontrol/internal/ballistics"
	"github.com/OCAP2/firecontrol/internal/grid"
	"github.com/OCAP2/firecontrol/internal/units"
	"github.com/OCAP2/firecontrol/internal/weapons"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// State is everything a fire direction solution depends on.
type State struct {
	Weapon     weapons.Weapon
	Range      weapons.Range
	Unit       units.Unit
	Trajectory ballistics.Trajectory
	Gun        core.Emplacement
	Target     core.Emplacement
}

// DefaultState is the state a fresh fire direction display starts from.
func DefaultState() State {
	return State{
		Weapon:     weapons.M119A2,
		Range:      weapons.Short,
		Unit:       weapons.M119A2.DefaultUnit,
		Trajectory: ballistics.High,
		Gun:        NewEmplacement("000000", 0),
		Target:     NewEmplacement("010000", 0),
	}
}

// NewEmplacement returns an emplacement with every sector level on the center pick.
func NewEmplacement(quadrant string, elevation float64) core.Emplacement {
	sectors := make([]int, grid.SectorDepth)
	for i := range sectors {
		sectors[i] = grid.CenterSector
	}
	return core.Emplacement{Quadrant: quadrant, Sectors: sectors, Elevation: elevation}
}

func cloneEmplacement(e core.Emplacement) core.Emplacement {
	e.Sectors = slices.Clone(e.Sectors)
	return e
}

func (s State) clone() State {
	s.Gun = cloneEmplacement(s.Gun)
	s.Target = cloneEmplacement(s.Target)
	return s
}

// WithWeapon selects a weapon and switches to its default display unit.
func (s State) WithWeapon(w weapons.Weapon) State {
	n := s.clone()
	n.Weapon = w
	n.Unit = w.DefaultUnit
	return n
}

// WithRange selects a charge.
func (s State) WithRange(r weapons.Range) State {
	n := s.clone()
	n.Range = r
	return n
}

// WithUnit selects the display unit.
func (s State) WithUnit(u units.Unit) State {
	n := s.clone()
	n.Unit = u
	return n
}

// WithTrajectory selects the high or low angle solution.
func (s State) WithTrajectory(t ballistics.Trajectory) State {
	n := s.clone()
	n.Trajectory = t
	return n
}

// WithGun replaces the gun emplacement.
func (s State) WithGun(e core.Emplacement) State {
	n := s.clone()
	n.Gun = cloneEmplacement(e)
	return n
}

// WithTarget replaces the target emplacement.
func (s State) WithTarget(e core.Emplacement) State {
	n := s.clone()
	n.Target = cloneEmplacement(e)
	return n
}

// WithGunSector sets the gun sector pick at one level.
func (s State) WithGunSector(level, sector int) (State, error) {
	e, err := withSector(s.Gun, level, sector)
	if err != nil {
		return s, err
	}
	n := s.clone()
	n.Gun = e
	return n, nil
}

// WithTargetSector sets the target sector pick at one level.
func (s State) WithTargetSector(level, sector int) (State, error) {
	e, err := withSector(s.Target, level, sector)
	if err != nil {
		return s, err
	}
	n := s.clone()
	n.Target = e
	return n, nil
}

func withSector(e core.Emplacement, level, sector int) (core.Emplacement, error) {
	if level < 0 || level >= grid.SectorDepth {
		return e, fmt.Errorf("%w: level %d outside 0..%d", grid.ErrInvalidSector, level, grid.SectorDepth-1)
	}
	if _, _, err := grid.SectorOffset(sector); err != nil {
		return e, err
	}
	e = cloneEmplacement(e)
	for len(e.Sectors) <= level {
		e.Sectors = append(e.Sectors, grid.CenterSector)
	}
	e.Sectors[level] = sector
	return e, nil
}

// Position resolves an emplacement's grid reference into a map position.
func Position(e core.Emplacement) (core.Position, error) {
	c, err := grid.Locate(e.Quadrant, e.Sectors)
	if err != nil {
		return core.Position{}, err
	}
	return core.Position{Coordinate: c, Elevation: e.Elevation}, nil
}
