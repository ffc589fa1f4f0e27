package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&World{},
	&FireMission{},
}

// World is a terrain fire missions were computed on
type World struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	CreatedAt   time.Time `json:"createdAt"`
	WorldName   string    `json:"worldName" gorm:"size:127;uniqueIndex"`
	DisplayName string    `json:"displayName" gorm:"size:127"`
	WorldSize   float32   `json:"worldSize"`
	Latitude    float32   `json:"latitude"`
	Longitude   float32   `json:"longitude"`
	// Location is the terrain origin in EPSG:3857, stored as WKB
	Location     geom.Point    `json:"location" gorm:"type:bytea"`
	FireMissions []FireMission `json:"-"`
}

func (*World) TableName() string {
	return "worlds"
}

// GetOrInsert loads the world with the same name or creates it.
func (w *World) GetOrInsert(db *gorm.DB) (created bool, err error) {
	var existing World
	err = db.Where("world_name = ?", w.WorldName).First(&existing).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return true, db.Create(w).Error
		}
		return false, err
	}
	*w = existing
	return false, nil
}

// FireMission is a solved fire mission. Sector lists are JSON arrays; gun
// and target positions are XYZ points in the terrain frame, stored as WKB.
type FireMission struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	Time           time.Time `json:"time" gorm:"index:idx_firemission_time"`
	WorldID        uint      `json:"worldId" gorm:"index:idx_firemission_world_id"`
	World          World     `json:"-" gorm:"foreignkey:WorldID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Weapon         string    `json:"weapon" gorm:"size:64;index:idx_firemission_weapon"`
	Range          string    `json:"range" gorm:"size:16"`
	MuzzleVelocity float64   `json:"muzzleVelocity"`
	Trajectory     string    `json:"trajectory" gorm:"size:8"`

	GunQuadrant     string         `json:"gunQuadrant" gorm:"size:6"`
	GunSectors      datatypes.JSON `json:"gunSectors"`
	GunElevation    float64        `json:"gunElevation"`
	TargetQuadrant  string         `json:"targetQuadrant" gorm:"size:6"`
	TargetSectors   datatypes.JSON `json:"targetSectors"`
	TargetElevation float64        `json:"targetElevation"`

	Gun    geom.Point `json:"gun" gorm:"type:bytea"`
	Target geom.Point `json:"target" gorm:"type:bytea"`

	Distance     float64 `json:"distance"`
	Bearing      float64 `json:"bearing"`
	Angle        float64 `json:"angle"`
	TimeOnTarget float64 `json:"timeOnTarget"`
}

func (*FireMission) TableName() string {
	return "fire_missions"
}
