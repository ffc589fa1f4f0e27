package core

import (
	"strings"
	"time"
)

// FireMissionFilter selects recorded fire missions. Zero fields match
// everything. Backends return matches newest first.
type FireMissionFilter struct {
	WorldName string
	Weapon    string
	Since     time.Time
	Limit     int
}

// Match reports whether m passes the filter, ignoring Limit.
func (f FireMissionFilter) Match(m FireMission) bool {
	if f.WorldName != "" && !strings.EqualFold(f.WorldName, m.WorldName) {
		return false
	}
	if f.Weapon != "" && !strings.EqualFold(f.Weapon, m.Weapon) {
		return false
	}
	if !f.Since.IsZero() && m.Time.Before(f.Since) {
		return false
	}
	return true
}
