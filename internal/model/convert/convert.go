// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/OCAP2/firecontrol/internal/geo"
	"github.com/OCAP2/firecontrol/internal/model"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// sectorsToJSON converts a sector list to datatypes.JSON for DB storage.
func sectorsToJSON(sectors []int) datatypes.JSON {
	if len(sectors) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(sectors)
	return datatypes.JSON(data)
}

func sectorsFromJSON(data datatypes.JSON) ([]int, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var sectors []int
	if err := json.Unmarshal(data, &sectors); err != nil {
		return nil, fmt.Errorf("decoding sectors %s: %w", string(data), err)
	}
	if len(sectors) == 0 {
		return nil, nil
	}
	return sectors, nil
}

// CoreToWorld converts a core.World to a GORM model.World, computing the
// web mercator anchor from its WGS84 origin.
func CoreToWorld(w core.World) model.World {
	return model.World{
		ID:          w.ID,
		WorldName:   w.WorldName,
		DisplayName: w.DisplayName,
		WorldSize:   w.WorldSize,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
		Location:    geo.WorldAnchor(float64(w.Longitude), float64(w.Latitude)),
	}
}

// WorldToCore converts a GORM model.World to a core.World.
func WorldToCore(w model.World) core.World {
	return core.World{
		ID:          w.ID,
		WorldName:   w.WorldName,
		DisplayName: w.DisplayName,
		WorldSize:   w.WorldSize,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
	}
}

// CoreToFireMission converts a core.FireMission to a GORM model.FireMission
// belonging to the given world row.
func CoreToFireMission(m core.FireMission, worldID uint) model.FireMission {
	return model.FireMission{
		ID:              m.ID,
		Time:            m.Time,
		WorldID:         worldID,
		Weapon:          m.Weapon,
		Range:           m.Range,
		MuzzleVelocity:  m.MuzzleVelocity,
		Trajectory:      m.Trajectory,
		GunQuadrant:     m.GunGrid.Quadrant,
		GunSectors:      sectorsToJSON(m.GunGrid.Sectors),
		GunElevation:    m.GunGrid.Elevation,
		TargetQuadrant:  m.TargetGrid.Quadrant,
		TargetSectors:   sectorsToJSON(m.TargetGrid.Sectors),
		TargetElevation: m.TargetGrid.Elevation,
		Gun:             geo.Point(m.Gun),
		Target:          geo.Point(m.Target),
		Distance:        m.Solution.Distance,
		Bearing:         m.Solution.Bearing,
		Angle:           m.Solution.Angle,
		TimeOnTarget:    m.Solution.TimeOnTarget,
	}
}

// FireMissionToCore converts a GORM model.FireMission to a core.FireMission.
// The World association must be preloaded for WorldName to be set.
func FireMissionToCore(m model.FireMission) (core.FireMission, error) {
	gunSectors, err := sectorsFromJSON(m.GunSectors)
	if err != nil {
		return core.FireMission{}, err
	}
	targetSectors, err := sectorsFromJSON(m.TargetSectors)
	if err != nil {
		return core.FireMission{}, err
	}
	gun, _ := geo.PositionFromPoint(m.Gun)
	target, _ := geo.PositionFromPoint(m.Target)

	return core.FireMission{
		ID:             m.ID,
		Time:           m.Time,
		WorldName:      m.World.WorldName,
		Weapon:         m.Weapon,
		Range:          m.Range,
		MuzzleVelocity: m.MuzzleVelocity,
		Trajectory:     m.Trajectory,
		GunGrid: core.Emplacement{
			Quadrant:  m.GunQuadrant,
			Sectors:   gunSectors,
			Elevation: m.GunElevation,
		},
		TargetGrid: core.Emplacement{
			Quadrant:  m.TargetQuadrant,
			Sectors:   targetSectors,
			Elevation: m.TargetElevation,
		},
		Gun:    gun,
		Target: target,
		Solution: core.Solution{
			Distance:     m.Distance,
			Bearing:      m.Bearing,
			Angle:        m.Angle,
			TimeOnTarget: m.TimeOnTarget,
		},
	}, nil
}
