// pkg/core/position.go
package core

// Coordinate is a planar map position in meters. Long is the easting, Lat the northing.
type Coordinate struct {
	Long float64
	Lat  float64
}

// Offset returns the coordinate moved by the given easting and northing.
func (c Coordinate) Offset(dLong, dLat float64) Coordinate {
	return Coordinate{Long: c.Long + dLong, Lat: c.Lat + dLat}
}

// Position is a Coordinate with height above sea level, in meters.
type Position struct {
	Coordinate
	Elevation float64
}

// NewPosition builds a Position from its three components.
func NewPosition(long, lat, elevation float64) Position {
	return Position{
		Coordinate: Coordinate{Long: long, Lat: lat},
		Elevation:  elevation,
	}
}
