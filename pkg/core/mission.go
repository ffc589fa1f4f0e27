// pkg/core/mission.go
package core

import "time"

// World represents the terrain fire missions are computed on
type World struct {
	ID          uint
	WorldName   string
	DisplayName string
	WorldSize   float32
	Latitude    float32
	Longitude   float32
}

// Emplacement is a grid reference as entered by the user
type Emplacement struct {
	Quadrant  string
	Sectors   []int
	Elevation float64
}

// FireMission is a solved fire mission as it is recorded to storage
type FireMission struct {
	ID             uint
	Time           time.Time
	WorldName      string
	Weapon         string
	Range          string
	MuzzleVelocity float64
	Trajectory     string
	GunGrid        Emplacement
	TargetGrid     Emplacement
	Gun            Position
	Target         Position
	Solution       Solution
}
