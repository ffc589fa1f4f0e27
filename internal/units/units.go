// Package units converts radians into the angular units gun crews read off
// their sights.
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownUnit is returned when a unit name matches no entry in the table
var ErrUnknownUnit = errors.New("unknown unit")

// Conversion factors from one radian.
const (
	DegPerRad      = 180 / math.Pi
	NATOMradPerRad = 1018.592 // 6400 mils per circle
	WPMradPerRad   = 954.930  // 6000 mils per circle
	MradPerRad     = 1000
)

// Unit is a display unit for angles.
type Unit struct {
	Name     string
	Factor   float64 // display units per radian
	Decimals int     // rounding precision of the display value
}

// Convert returns radians expressed in u, rounded to u's precision.
func (u Unit) Convert(radians float64) float64 {
	return round(radians*u.Factor, u.Decimals)
}

// Format returns the converted value with exactly u.Decimals decimals.
func (u Unit) Format(radians float64) string {
	return strconv.FormatFloat(u.Convert(radians), 'f', u.Decimals, 64)
}

func (u Unit) String() string {
	return u.Name
}

var (
	Degrees  = Unit{Name: "deg", Factor: DegPerRad, Decimals: 2}
	NATOMrad = Unit{Name: "NATO mrad", Factor: NATOMradPerRad, Decimals: 1}
	WPMrad   = Unit{Name: "WP mrad", Factor: WPMradPerRad, Decimals: 1}
	Mrad     = Unit{Name: "mrad", Factor: MradPerRad, Decimals: 1}
	Radians  = Unit{Name: "rad", Factor: 1, Decimals: 4}
)

var all = []Unit{Degrees, NATOMrad, WPMrad, Mrad, Radians}

var aliases = map[string]Unit{
	"deg":       Degrees,
	"degrees":   Degrees,
	"nato mrad": NATOMrad,
	"nato":      NATOMrad,
	"mil":       NATOMrad,
	"wp mrad":   WPMrad,
	"wp":        WPMrad,
	"mrad":      Mrad,
	"rad":       Radians,
	"radians":   Radians,
}

// All returns the unit table in display order.
func All() []Unit {
	out := make([]Unit, len(all))
	copy(out, all)
	return out
}

// Names returns the unit names in display order.
func Names() []string {
	names := make([]string, len(all))
	for i, u := range all {
		names[i] = u.Name
	}
	return names
}

// Lookup finds a unit by name or short alias, ignoring case.
func Lookup(name string) (Unit, error) {
	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	key = strings.ReplaceAll(key, "_", " ")
	if u, ok := aliases[key]; ok {
		return u, nil
	}
	return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// RoundTenth rounds to one decimal, the precision distances and times are shown at.
func RoundTenth(v float64) float64 {
	return round(v, 1)
}
