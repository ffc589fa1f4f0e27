package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/OCAP2/firecontrol/pkg/core"
)

// Gun and target positions are stored as XYZ points in the terrain's own
// metric frame. Only the world anchor is converted from 4326 to 3857 so
// missions from different terrains can be placed on a web map.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParsePosition parses "x,y" or "x,y,z" into a core.Position. SQF array
// brackets and surrounding whitespace are accepted, so the output of
// str (getPosASL _gun) can be passed through unchanged.
func ParsePosition(coords string) (core.Position, error) {
	s := strings.TrimSpace(coords)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Position{}, fmt.Errorf("%w: %q", ErrInvalidCoordinates, coords)
	}

	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Position{}, fmt.Errorf("%w: %q", ErrInvalidCoordinates, coords)
		}
		vals[i] = v
	}
	return core.NewPosition(vals[0], vals[1], vals[2]), nil
}

// Point converts a position into an XYZ point.
func Point(p core.Position) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.Long, Y: p.Lat},
		Z:    p.Elevation,
		Type: geom.DimXYZ,
	})
}

// PositionFromPoint is the inverse of Point. Empty points report false.
func PositionFromPoint(pt geom.Point) (core.Position, bool) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position{}, false
	}
	return core.NewPosition(c.X, c.Y, c.Z), true
}

// LineOfFire returns the planar gun-to-target segment.
func LineOfFire(gun, target core.Position) geom.LineString {
	seq := geom.NewSequence([]float64{
		gun.Long, gun.Lat, gun.Elevation,
		target.Long, target.Lat, target.Elevation,
	}, geom.DimXYZ)
	return geom.NewLineString(seq)
}

// WorldAnchor converts a terrain's WGS84 origin into a web mercator point.
func WorldAnchor(longitude, latitude float64) geom.Point {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}})
}
