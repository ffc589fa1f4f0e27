// pkg/core/solution.go
package core

// Solution is a computed firing solution. Angles are radians.
type Solution struct {
	Distance     float64 // planar distance gun to target, meters
	Bearing      float64 // compass bearing, clockwise from north, [0, 2π)
	Angle        float64 // launch elevation above the horizon
	TimeOnTarget float64 // flight time, seconds
}
