// Package grid converts quadrant and sector grid references into map coordinates.
//
// A quadrant is a square of QuadrantWidth meters identified by six digits,
// three for the easting index and three for the northing index. Each sector
// level splits the current cell into a 3x3 block numbered like a keypad,
// 7-8-9 on the northern row and 1-2-3 on the southern row.
package grid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/firecontrol/pkg/core"
)

const (
	// QuadrantWidth is the side of a quadrant in meters.
	QuadrantWidth = 100.0
	// SectorResolution is the number of cells per side at each sector level.
	SectorResolution = 3
	// SectorDepth is the deepest sector level accepted.
	SectorDepth = 3
	// CenterSector applies no offset beyond centering and is the default pick.
	CenterSector = 5

	quadrantDigits = 6
)

var (
	// ErrInvalidFormat is returned when a quadrant id is not exactly six digits
	ErrInvalidFormat = errors.New("invalid quadrant format")
	// ErrInvalidSector is returned for a sector index outside the keypad table
	ErrInvalidSector = errors.New("invalid sector")
)

// sectorOffsets maps a keypad index to its (long, lat) cell within a 3x3 block.
// Index 0 is unused.
var sectorOffsets = [10][2]int{
	{},
	{0, 0}, {1, 0}, {2, 0},
	{0, 1}, {1, 1}, {2, 1},
	{0, 2}, {1, 2}, {2, 2},
}

// SectorOffset returns the cell an index selects inside its parent block.
func SectorOffset(index int) (long, lat int, err error) {
	if index < 1 || index >= len(sectorOffsets) {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidSector, index)
	}
	o := sectorOffsets[index]
	return o[0], o[1], nil
}

// QuadrantToCoordinate returns the south-west corner of a quadrant.
func QuadrantToCoordinate(quadrantID string) (core.Coordinate, error) {
	if len(quadrantID) != quadrantDigits {
		return core.Coordinate{}, fmt.Errorf("%w: %q must have %d digits", ErrInvalidFormat, quadrantID, quadrantDigits)
	}
	for i := 0; i < len(quadrantID); i++ {
		if quadrantID[i] < '0' || quadrantID[i] > '9' {
			return core.Coordinate{}, fmt.Errorf("%w: %q contains a non-digit", ErrInvalidFormat, quadrantID)
		}
	}

	// both halves are three ASCII digits, Atoi cannot fail past the check above
	long, _ := strconv.Atoi(quadrantID[:3])
	lat, _ := strconv.Atoi(quadrantID[3:])

	return core.Coordinate{
		Long: float64(long) * QuadrantWidth,
		Lat:  float64(lat) * QuadrantWidth,
	}, nil
}

// RefineWithSectors walks the sector levels from outermost to innermost and
// returns the center of the smallest cell. With no sectors it returns the
// center of the quadrant.
func RefineWithSectors(base core.Coordinate, sectors []int) (core.Coordinate, error) {
	if len(sectors) > SectorDepth {
		return core.Coordinate{}, fmt.Errorf("%w: %d levels, at most %d supported", ErrInvalidSector, len(sectors), SectorDepth)
	}

	coord := base
	width := QuadrantWidth
	for _, sector := range sectors {
		long, lat, err := SectorOffset(sector)
		if err != nil {
			return core.Coordinate{}, err
		}
		width /= SectorResolution
		coord = coord.Offset(float64(long)*width, float64(lat)*width)
	}

	return coord.Offset(width/2, width/2), nil
}

// Locate resolves a quadrant id and its sector picks into a map coordinate.
func Locate(quadrantID string, sectors []int) (core.Coordinate, error) {
	base, err := QuadrantToCoordinate(quadrantID)
	if err != nil {
		return core.Coordinate{}, err
	}
	return RefineWithSectors(base, sectors)
}

// CellWidth returns the side in meters of a cell after the given number of sector levels.
func CellWidth(levels int) float64 {
	return QuadrantWidth / math.Pow(SectorResolution, float64(levels))
}

// ParseSectors parses a keypad string such as "795" into sector indices.
// Spaces, commas and dashes between digits are ignored.
func ParseSectors(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	sectors := make([]int, 0, len(s))
	for _, r := range s {
		switch {
		case r == ' ' || r == ',' || r == '-':
			continue
		case r >= '1' && r <= '9':
			sectors = append(sectors, int(r-'0'))
		default:
			return nil, fmt.Errorf("%w: %q in %q", ErrInvalidSector, r, s)
		}
	}
	if len(sectors) > SectorDepth {
		return nil, fmt.Errorf("%w: %d levels, at most %d supported", ErrInvalidSector, len(sectors), SectorDepth)
	}
	return sectors, nil
}

// FormatSectors is the inverse of ParseSectors.
func FormatSectors(sectors []int) string {
	var b strings.Builder
	for _, s := range sectors {
		b.WriteString(strconv.Itoa(s))
	}
	return b.String()
}
