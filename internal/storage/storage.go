// Package storage defines where solved fire missions are logged.
package storage

import "github.com/OCAP2/firecontrol/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// RecordFireMission stores m and assigns its ID.
	RecordFireMission(m *core.FireMission) error

	// FireMissions returns recorded missions matching f, newest first.
	FireMissions(f core.FireMissionFilter) ([]core.FireMission, error)
}

// Exporter is an optional interface for backends that write their log to a
// file when closed.
type Exporter interface {
	ExportedFilePath() string
}
