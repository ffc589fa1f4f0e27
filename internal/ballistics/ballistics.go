// Package ballistics solves indirect-fire launch angles and flight times for a
// drag-free projectile over flat ground under constant gravity.
package ballistics

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/OCAP2/firecontrol/pkg/core"
)

// G is standard gravity in m/s².
const G = 9.80665

var (
	// ErrOutOfRange is returned when no trajectory reaches the target
	ErrOutOfRange = errors.New("target out of range")
	// ErrInvalidInput is returned for non-finite or non-positive inputs
	ErrInvalidInput = errors.New("invalid ballistic input")
)

// Trajectory selects one of the two launch angles that reach a target.
type Trajectory int

const (
	// High is the lofted solution used by mortars and howitzers in indirect fire.
	High Trajectory = iota
	// Low is the flatter, direct-fire solution.
	Low
)

func (t Trajectory) String() string {
	switch t {
	case High:
		return "high"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("Trajectory(%d)", int(t))
	}
}

// ParseTrajectory accepts "high" or "low" in any case.
func ParseTrajectory(s string) (Trajectory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "":
		return High, nil
	case "low":
		return Low, nil
	default:
		return High, fmt.Errorf("unknown trajectory %q", s)
	}
}

// Roots holds both launch angles for one shot, in radians.
type Roots struct {
	High float64
	Low  float64
}

// Pick returns the angle for the given trajectory.
func (r Roots) Pick(t Trajectory) float64 {
	if t == Low {
		return r.Low
	}
	return r.High
}

// DistanceAndBearing returns the planar distance between two coordinates and
// the compass bearing from the first to the second, clockwise from north in
// [0, 2π). Coincident coordinates have bearing 0.
func DistanceAndBearing(from, to core.Coordinate) (distance, bearing float64) {
	dLong := to.Long - from.Long
	dLat := to.Lat - from.Lat
	distance = math.Hypot(dLong, dLat)
	if dLong == 0 && dLat == 0 {
		return distance, 0
	}

	// math angle is counter-clockwise from east, compass is clockwise from north
	bearing = math.Pi/2 - math.Atan2(dLat, dLong)
	if bearing < 0 {
		bearing += 2 * math.Pi
	}
	if bearing >= 2*math.Pi {
		bearing -= 2 * math.Pi
	}
	return distance, bearing
}

// LaunchAngles returns both launch angles that carry a projectile fired at
// muzzleVelocity over distance with the given elevation difference, where
// elevationDifference is gun elevation minus target elevation.
func LaunchAngles(muzzleVelocity, distance, elevationDifference float64) (Roots, error) {
	if err := checkInputs(muzzleVelocity, distance, elevationDifference); err != nil {
		return Roots{}, err
	}
	if distance < 0 {
		return Roots{}, fmt.Errorf("%w: negative distance %v", ErrInvalidInput, distance)
	}
	if distance == 0 {
		return Roots{}, fmt.Errorf("%w: zero distance requires a vertical shot", ErrOutOfRange)
	}

	v2 := muzzleVelocity * muzzleVelocity
	discriminant := v2*v2 - G*(G*distance*distance+2*elevationDifference*v2)
	if discriminant < 0 {
		return Roots{}, fmt.Errorf("%w: %.1f m exceeds %.1f m at %.1f m/s",
			ErrOutOfRange, distance, MaxRange(muzzleVelocity, elevationDifference), muzzleVelocity)
	}

	sqrtValue := math.Sqrt(discriminant)
	denominator := G * distance
	a := math.Atan((v2 + sqrtValue) / denominator)
	b := math.Atan((v2 - sqrtValue) / denominator)

	return Roots{High: math.Max(a, b), Low: math.Min(a, b)}, nil
}

// TimeOfFlight returns the time for a shot fired at angle to come back down to
// elevationDifference on its descending branch.
func TimeOfFlight(muzzleVelocity, angle, elevationDifference float64) (float64, error) {
	if err := checkInputs(muzzleVelocity, angle, elevationDifference); err != nil {
		return 0, err
	}

	verticalVelocity := muzzleVelocity * math.Sin(angle)
	discriminant := verticalVelocity*verticalVelocity - 2*G*elevationDifference
	if discriminant < 0 {
		return 0, fmt.Errorf("%w: apex below %.1f m", ErrOutOfRange, elevationDifference)
	}

	sqrtValue := math.Sqrt(discriminant)
	return math.Max((verticalVelocity-sqrtValue)/G, (verticalVelocity+sqrtValue)/G), nil
}

// MaxRange returns the largest planar distance reachable at muzzleVelocity for
// the given elevation difference, or 0 if none is.
func MaxRange(muzzleVelocity, elevationDifference float64) float64 {
	v2 := muzzleVelocity * muzzleVelocity
	reach := v2*v2 - 2*G*elevationDifference*v2
	if reach <= 0 {
		return 0
	}
	return math.Sqrt(reach) / G
}

// Solve computes the high-angle firing solution from gun to target.
func Solve(gun, target core.Position, muzzleVelocity float64) (core.Solution, error) {
	return SolveTrajectory(gun, target, muzzleVelocity, High)
}

// SolveTrajectory computes the firing solution for the chosen trajectory.
// When no trajectory exists the returned solution still carries distance and
// bearing so callers can report how far out of range the target is.
func SolveTrajectory(gun, target core.Position, muzzleVelocity float64, trajectory Trajectory) (core.Solution, error) {
	elevationDifference := gun.Elevation - target.Elevation
	distance, bearing := DistanceAndBearing(gun.Coordinate, target.Coordinate)
	solution := core.Solution{Distance: distance, Bearing: bearing}

	roots, err := LaunchAngles(muzzleVelocity, distance, elevationDifference)
	if err != nil {
		return solution, err
	}
	angle := roots.Pick(trajectory)

	timeOnTarget, err := TimeOfFlight(muzzleVelocity, angle, elevationDifference)
	if err != nil {
		return solution, err
	}

	solution.Angle = angle
	solution.TimeOnTarget = timeOnTarget
	return solution, nil
}

func checkInputs(muzzleVelocity float64, values ...float64) error {
	if math.IsNaN(muzzleVelocity) || math.IsInf(muzzleVelocity, 0) || muzzleVelocity <= 0 {
		return fmt.Errorf("%w: muzzle velocity %v", ErrInvalidInput, muzzleVelocity)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, v)
		}
	}
	return nil
}
