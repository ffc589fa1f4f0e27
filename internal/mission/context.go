// Package mission tracks the fire direction session of one extension instance:
// the terrain in use, the state the operator last entered and the last shot
// that was solved from it.
package mission

import (
	"sync"
	"time"

	"github.com/OCAP2/firecontrol/internal/firecontrol"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// Shot is a solved readout together with the state that produced it.
type Shot struct {
	State   firecontrol.State
	Readout firecontrol.Readout
	At      time.Time
}

// Context holds the current world and fire direction state
type Context struct {
	mu    sync.RWMutex
	world core.World
	state firecontrol.State
	last  *Shot
}

// NewContext creates a Context starting from initial. No world is set.
func NewContext(initial firecontrol.State) *Context {
	return &Context{state: initial}
}

// GetWorld returns the current world
func (mc *Context) GetWorld() core.World {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.world
}

// SetWorld replaces the current world. The last shot is kept.
func (mc *Context) SetWorld(w core.World) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.world = w
}

// State returns the fire direction state last entered.
func (mc *Context) State() firecontrol.State {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.state
}

// Update applies fn to the current state and stores the result.
func (mc *Context) Update(fn func(firecontrol.State) (firecontrol.State, error)) (firecontrol.State, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	next, err := fn(mc.state)
	if err != nil {
		return mc.state, err
	}
	mc.state = next
	return next, nil
}

// Record stores the outcome of a solve and reports whether it had a
// solution. A readout without one clears the last shot, so countdowns and
// mission logs never act on numbers the current input no longer produces.
func (mc *Context) Record(s Shot) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.state = s.State
	if !s.Readout.OK() {
		mc.last = nil
		return false
	}
	mc.last = &s
	return true
}

// LastShot returns the last solved shot.
func (mc *Context) LastShot() (Shot, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.last == nil {
		return Shot{}, false
	}
	return *mc.last, true
}

// FireMission converts the last shot into a storage record.
func (mc *Context) FireMission() (core.FireMission, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.last == nil {
		return core.FireMission{}, false
	}
	return mc.last.State.FireMission(mc.last.Readout, mc.world.WorldName, mc.last.At), true
}
