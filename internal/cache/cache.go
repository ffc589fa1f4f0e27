package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/OCAP2/firecontrol/internal/ballistics"
	"github.com/OCAP2/firecontrol/pkg/core"
)

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 256

// Key identifies a ballistic problem. Positions are compared exactly, so
// cached entries only hit on identical inputs.
type Key struct {
	Gun        core.Position
	Target     core.Position
	Velocity   float64
	Trajectory ballistics.Trajectory
}

// Entry is a cached solver result. Err is kept so repeated out-of-range
// queries are answered without recomputing.
type Entry struct {
	Solution core.Solution
	Err      error
}

// SolutionCache memoises solver results. Arma dialogs re-query on every
// keypress, mostly with inputs that were just solved.
type SolutionCache struct {
	entries *lru.Cache[Key, Entry]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewSolutionCache creates a cache holding at most size entries.
func NewSolutionCache(size int) (*SolutionCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[Key, Entry](size)
	if err != nil {
		return nil, err
	}
	return &SolutionCache{entries: c}, nil
}

// Get returns the cached entry for k.
func (c *SolutionCache) Get(k Key) (Entry, bool) {
	e, ok := c.entries.Get(k)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// Add stores an entry, evicting the least recently used one when full.
func (c *SolutionCache) Add(k Key, e Entry) {
	c.entries.Add(k, e)
}

// Solve returns the cached result for k or computes and stores it.
func (c *SolutionCache) Solve(k Key) (core.Solution, error) {
	if e, ok := c.Get(k); ok {
		return e.Solution, e.Err
	}
	sol, err := ballistics.SolveTrajectory(k.Gun, k.Target, k.Velocity, k.Trajectory)
	c.Add(k, Entry{Solution: sol, Err: err})
	return sol, err
}

// SolveTrajectory has the signature of ballistics.SolveTrajectory and answers
// from the cache.
func (c *SolutionCache) SolveTrajectory(gun, target core.Position, velocity float64, trajectory ballistics.Trajectory) (core.Solution, error) {
	return c.Solve(Key{Gun: gun, Target: target, Velocity: velocity, Trajectory: trajectory})
}

func (c *SolutionCache) Len() int {
	return c.entries.Len()
}

// Reset drops all entries and counters.
func (c *SolutionCache) Reset() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats returns the hit and miss counts since creation or the last Reset.
func (c *SolutionCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
