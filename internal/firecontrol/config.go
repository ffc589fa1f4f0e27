package firecontrol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OCAP2/firecontrol/internal/ballistics"
	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/internal/units"
	"github.com/OCAP2/firecontrol/internal/weapons"
)

// CatalogFromConfig returns the built-in weapons plus the ones declared in
// config. A weapon without a default unit uses degrees.
func CatalogFromConfig(extra []config.WeaponConfig) (*weapons.Catalog, error) {
	ws := make([]weapons.Weapon, 0, len(extra))
	for _, wc := range extra {
		name := strings.TrimSpace(wc.Name)
		if name == "" {
			return nil, errors.New("weapon without a name")
		}
		if len(wc.MuzzleVelocities) == 0 {
			return nil, fmt.Errorf("weapon %q has no muzzle velocities", name)
		}
		for _, v := range wc.MuzzleVelocities {
			if v <= 0 {
				return nil, fmt.Errorf("weapon %q: %w: muzzle velocity %v", name, ballistics.ErrInvalidInput, v)
			}
		}
		unit := units.Degrees
		if wc.DefaultUnit != "" {
			u, err := units.Lookup(wc.DefaultUnit)
			if err != nil {
				return nil, fmt.Errorf("weapon %q: %w", name, err)
			}
			unit = u
		}
		ws = append(ws, weapons.Weapon{
			Name:             name,
			MuzzleVelocities: append([]float64(nil), wc.MuzzleVelocities...),
			DefaultUnit:      unit,
		})
	}
	return weapons.NewCatalog(ws...), nil
}

// StateFromConfig returns DefaultState with the configured weapon, unit and
// trajectory applied. Empty settings keep the defaults.
func StateFromConfig(cfg config.FireControlConfig, catalog *weapons.Catalog) (State, error) {
	s := DefaultState()

	if cfg.DefaultWeapon != "" {
		w, err := catalog.Lookup(cfg.DefaultWeapon)
		if err != nil {
			return s, err
		}
		s = s.WithWeapon(w)
	}
	if cfg.DefaultUnit != "" {
		u, err := units.Lookup(cfg.DefaultUnit)
		if err != nil {
			return s, err
		}
		s = s.WithUnit(u)
	}
	if cfg.Trajectory != "" {
		t, err := ballistics.ParseTrajectory(cfg.Trajectory)
		if err != nil {
			return s, err
		}
		s = s.WithTrajectory(t)
	}
	return s, nil
}
