package ballistics

import (
	"errors"
	"math"
	"testing"

	"github.com/OCAP2/firecontrol/internal/grid"
	"github.com/OCAP2/firecontrol/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestDistanceAndBearing_Cardinals(t *testing.T) {
	origin := core.Coordinate{Long: 500, Lat: 500}
	tests := []struct {
		name     string
		to       core.Coordinate
		distance float64
		bearing  float64
	}{
		{"north", core.Coordinate{Long: 500, Lat: 600}, 100, 0},
		{"east", core.Coordinate{Long: 600, Lat: 500}, 100, math.Pi / 2},
		{"south", core.Coordinate{Long: 500, Lat: 400}, 100, math.Pi},
		{"west", core.Coordinate{Long: 400, Lat: 500}, 100, 3 * math.Pi / 2},
		{"north-east", core.Coordinate{Long: 600, Lat: 600}, math.Sqrt2 * 100, math.Pi / 4},
		{"north-west", core.Coordinate{Long: 400, Lat: 600}, math.Sqrt2 * 100, 7 * math.Pi / 4},
		{"south-west", core.Coordinate{Long: 400, Lat: 400}, math.Sqrt2 * 100, 5 * math.Pi / 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			distance, bearing := DistanceAndBearing(origin, tt.to)
			assert.InDelta(t, tt.distance, distance, tolerance)
			assert.InDelta(t, tt.bearing, bearing, tolerance)
		})
	}
}

func TestDistanceAndBearing_ZeroDisplacement(t *testing.T) {
	c := core.Coordinate{Long: 1234, Lat: 5678}
	distance, bearing := DistanceAndBearing(c, c)
	assert.Equal(t, 0.0, distance)
	assert.Equal(t, 0.0, bearing)
}

func TestDistanceAndBearing_AlwaysInRange(t *testing.T) {
	origin := core.Coordinate{}
	for deg := 0; deg < 360; deg += 7 {
		rad := float64(deg) * math.Pi / 180
		to := core.Coordinate{Long: 1000 * math.Sin(rad), Lat: 1000 * math.Cos(rad)}
		_, bearing := DistanceAndBearing(origin, to)
		assert.GreaterOrEqual(t, bearing, 0.0)
		assert.Less(t, bearing, 2*math.Pi)
		assert.InDelta(t, rad, bearing, 1e-9, "deg %d", deg)
	}
}

func TestLaunchAngles_FlatGroundRangeEquation(t *testing.T) {
	v, d := 240.0, 1000.0
	roots, err := LaunchAngles(v, d, 0)
	require.NoError(t, err)

	// both roots satisfy g*d = v² sin(2θ) on flat ground
	assert.InDelta(t, G*d, v*v*math.Sin(2*roots.High), 1e-6)
	assert.InDelta(t, G*d, v*v*math.Sin(2*roots.Low), 1e-6)
	assert.InDelta(t, math.Pi/2, roots.High+roots.Low, 1e-6)
	assert.Greater(t, roots.High, math.Pi/4)
	assert.Less(t, roots.Low, math.Pi/4)
}

func TestLaunchAngles_ReferenceValues(t *testing.T) {
	tests := []struct {
		v, d, dh  float64
		high, low float64
	}{
		{390, 1000, 0, 1.538536441321656, 0.03225988547323984},
		{240, 1000, 0, 1.485252440794157, 0.08554388600073942},
		{152.5, 1000, 50, 1.350512740592104, 0.27024198192473525},
		{152.5, 1000, -50, 1.3556589101092182, 0.16517902096373535},
		{200, 3000, 0, 1.1575950662041259, 0.4132012605907707},
	}
	for _, tt := range tests {
		roots, err := LaunchAngles(tt.v, tt.d, tt.dh)
		require.NoError(t, err)
		assert.InDelta(t, tt.high, roots.High, 1e-9, "v=%v d=%v dh=%v", tt.v, tt.d, tt.dh)
		assert.InDelta(t, tt.low, roots.Low, 1e-9, "v=%v d=%v dh=%v", tt.v, tt.d, tt.dh)
		assert.Equal(t, roots.High, roots.Pick(High))
		assert.Equal(t, roots.Low, roots.Pick(Low))
	}
}

func TestLaunchAngles_OutOfRange(t *testing.T) {
	roots, err := LaunchAngles(50, 10000, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.False(t, math.IsNaN(roots.High))
	assert.False(t, math.IsNaN(roots.Low))
}

func TestLaunchAngles_ZeroDistance(t *testing.T) {
	_, err := LaunchAngles(240, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestLaunchAngles_InvalidInput(t *testing.T) {
	cases := []struct{ v, d, dh float64 }{
		{0, 100, 0},
		{-10, 100, 0},
		{math.NaN(), 100, 0},
		{math.Inf(1), 100, 0},
		{240, math.NaN(), 0},
		{240, -5, 0},
		{240, 100, math.Inf(-1)},
	}
	for _, c := range cases {
		_, err := LaunchAngles(c.v, c.d, c.dh)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", c)
	}
}

func TestTimeOfFlight_ReferenceValues(t *testing.T) {
	tests := []struct {
		v, angle, dh float64
		expected     float64
	}{
		{390, 1.538536441321656, 0, 79.49648066525654},
		{390, 0.03225988547323984, 0, 2.565437373942933},
		{152.5, 1.350512740592104, 50, 30.01000469051315},
		{152.5, 1.3556589101092182, -50, 30.716345662405466},
	}
	for _, tt := range tests {
		tof, err := TimeOfFlight(tt.v, tt.angle, tt.dh)
		require.NoError(t, err)
		assert.InDelta(t, tt.expected, tof, 1e-6)
	}
}

func TestTimeOfFlight_FlatGroundMatchesClosedForm(t *testing.T) {
	v, angle := 200.0, 0.9
	tof, err := TimeOfFlight(v, angle, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2*v*math.Sin(angle)/G, tof, 1e-9)
}

func TestTimeOfFlight_ApexTooLow(t *testing.T) {
	_, err := TimeOfFlight(50, 0.1, 1000)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestMaxRange(t *testing.T) {
	assert.InDelta(t, 390*390/G, MaxRange(390, 0), 1e-9)

	// the discriminant is zero at max range, both roots meet at 45° on flat ground
	d := MaxRange(240, 0)
	roots, err := LaunchAngles(240, d*(1-1e-12), 0)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/4, roots.High, 1e-4)

	_, err = LaunchAngles(240, d*1.01, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	assert.Equal(t, 0.0, MaxRange(10, 1000))
}

func TestSolve_ScenarioEastByOneQuadrant(t *testing.T) {
	gunCoord, err := grid.Locate("000000", nil)
	require.NoError(t, err)
	targetCoord, err := grid.Locate("001000", nil)
	require.NoError(t, err)

	gun := core.Position{Coordinate: gunCoord}
	target := core.Position{Coordinate: targetCoord}

	solution, err := Solve(gun, target, 390)
	require.NoError(t, err)
	assert.InDelta(t, 100, solution.Distance, tolerance)
	assert.InDelta(t, math.Pi/2, solution.Bearing, tolerance)
	assert.InDelta(t, 1.5675725536372818, solution.Angle, 1e-9)
	assert.InDelta(t, 79.5374513055218, solution.TimeOnTarget, 1e-6)
}

func TestSolve_ScenarioTenQuadrantsEast(t *testing.T) {
	gunCoord, err := grid.Locate("000000", nil)
	require.NoError(t, err)
	targetCoord, err := grid.Locate("010000", nil)
	require.NoError(t, err)

	solution, err := Solve(core.Position{Coordinate: gunCoord}, core.Position{Coordinate: targetCoord}, 390)
	require.NoError(t, err)
	assert.InDelta(t, 1000, solution.Distance, tolerance)
	assert.InDelta(t, math.Pi/2, solution.Bearing, tolerance)
	assert.InDelta(t, 1.538536441321656, solution.Angle, 1e-9)
	assert.InDelta(t, 79.49648066525654, solution.TimeOnTarget, 1e-6)
}

func TestSolve_SamePositionIsOutOfRange(t *testing.T) {
	p := core.NewPosition(150, 150, 20)
	solution, err := Solve(p, p, 240)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 0.0, solution.Distance)
	assert.False(t, math.IsNaN(solution.Angle))
	assert.False(t, math.IsInf(solution.Angle, 0))
}

func TestSolve_OutOfRangeNeverNaN(t *testing.T) {
	gun := core.NewPosition(0, 0, 0)
	target := core.NewPosition(10000, 0, 0)

	solution, err := Solve(gun, target, 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.InDelta(t, 10000, solution.Distance, tolerance)
	assert.InDelta(t, math.Pi/2, solution.Bearing, tolerance)
	assert.False(t, math.IsNaN(solution.Angle))
	assert.False(t, math.IsNaN(solution.TimeOnTarget))
}

func TestSolveTrajectory_LowIsFlatterAndFaster(t *testing.T) {
	gun := core.NewPosition(0, 0, 10)
	target := core.NewPosition(800, 1200, 40)

	high, err := SolveTrajectory(gun, target, 240, High)
	require.NoError(t, err)
	low, err := SolveTrajectory(gun, target, 240, Low)
	require.NoError(t, err)

	assert.Equal(t, high.Distance, low.Distance)
	assert.Equal(t, high.Bearing, low.Bearing)
	assert.Greater(t, high.Angle, low.Angle)
	assert.Greater(t, high.TimeOnTarget, low.TimeOnTarget)

	solved, err := Solve(gun, target, 240)
	require.NoError(t, err)
	assert.Equal(t, high, solved)
}

func TestTrajectory_ParseAndString(t *testing.T) {
	tr, err := ParseTrajectory("LOW")
	require.NoError(t, err)
	assert.Equal(t, Low, tr)
	assert.Equal(t, "low", tr.String())

	tr, err = ParseTrajectory("")
	require.NoError(t, err)
	assert.Equal(t, High, tr)

	_, err = ParseTrajectory("sideways")
	assert.Error(t, err)
	assert.Equal(t, "Trajectory(7)", Trajectory(7).String())
}
