package sim

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// GenerateLoadFunc maps (pattern, seconds, profile) to a target user count.
// Set by sim/workload's init(); production code imports sim/workload, and
// package sim tests use workload_import_test.go for the blank import.
var GenerateLoadFunc func(pattern string, t float64, profile LoadProfile, rng Rand) int

// TickResult is the population after one reconciliation.
type TickResult struct {
	Clock   time.Time     `json:"clock"`
	Pattern string        `json:"pattern"`
	Target  int           `json:"target"`
	Users   []UserSession `json:"users"`
	Added   int           `json:"added"`
	Removed int           `json:"removed"`
}

// SimulationContext owns the mutable state of one simulation run: the user
// population and the linear-pattern time origin. Tick, Assign and Reset are
// serialized by an internal mutex, so at most one tick is in flight per
// context. Independent contexts share nothing and may run in parallel.
type SimulationContext struct {
	mu         sync.Mutex
	id         string
	seed       int64
	clock      clockwork.Clock
	rng        *PartitionedRNG
	population *Population

	linearOrigin    time.Time
	hasLinearOrigin bool
}

// NewSimulationContext creates an empty context. A nil clock means the real clock.
func NewSimulationContext(seed int64, clock clockwork.Clock) *SimulationContext {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SimulationContext{
		id:         uuid.NewString(),
		seed:       seed,
		clock:      clock,
		rng:        NewPartitionedRNG(NewSimulationKey(seed)),
		population: NewPopulation(),
	}
}

// ID returns the run identifier used in logs and reports.
func (c *SimulationContext) ID() string {
	return c.id
}

// Seed returns the master seed the random streams derive from.
func (c *SimulationContext) Seed() int64 {
	return c.seed
}

// Clock returns the clock the context reads tick times from.
func (c *SimulationContext) Clock() clockwork.Clock {
	return c.clock
}

// Tick computes the target user count for cfg's load profile at the current
// clock time and reconciles the population to it.
//
// The linear pattern measures time from the first tick spent in the linear
// regime; every other pattern reads the absolute clock in Unix seconds.
// Leaving the linear regime clears its origin. A nil cfg leaves the
// population untouched.
func (c *SimulationContext) Tick(cfg *RuntimeConfig) TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if cfg == nil {
		return TickResult{Clock: now, Target: c.population.Len(), Users: c.population.Snapshot()}
	}
	if GenerateLoadFunc == nil {
		panic("sim.GenerateLoadFunc not registered; import sim/workload")
	}

	profile := cfg.DefaultLoadProfile
	var t float64
	if profile.Pattern == PatternLinear {
		if !c.hasLinearOrigin {
			c.linearOrigin = now
			c.hasLinearOrigin = true
		}
		t = now.Sub(c.linearOrigin).Seconds()
	} else {
		c.hasLinearOrigin = false
		c.linearOrigin = time.Time{}
		t = float64(now.UnixNano()) / float64(time.Second)
	}

	target := GenerateLoadFunc(profile.Pattern, t, profile, c.rng.ForSubsystem(SubsystemLoad))
	added, removed := c.population.Reconcile(target, now, c.rng.ForSubsystem(SubsystemPopulation))

	logrus.WithFields(logrus.Fields{
		"run":     c.id,
		"pattern": profile.Pattern,
		"target":  target,
		"added":   len(added),
		"removed": len(removed),
	}).Debug("population reconciled")

	return TickResult{
		Clock:   now,
		Pattern: profile.Pattern,
		Target:  target,
		Users:   c.population.Snapshot(),
		Added:   len(added),
		Removed: len(removed),
	}
}

// Users returns a snapshot of the population, oldest first.
func (c *SimulationContext) Users() []UserSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.population.Snapshot()
}

// Assign stores the pod assignments computed by DistributeUsers.
func (c *SimulationContext) Assign(users []UserSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.population.Assign(users)
}

// LinearOrigin returns the start of the current linear regime, if any.
func (c *SimulationContext) LinearOrigin() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linearOrigin, c.hasLinearOrigin
}

// Reset empties the population and clears the linear origin. The random
// streams are reseeded so a reset context replays like a fresh one.
func (c *SimulationContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.population.Clear()
	c.linearOrigin = time.Time{}
	c.hasLinearOrigin = false
	c.rng = NewPartitionedRNG(NewSimulationKey(c.seed))
	logrus.WithField("run", c.id).Info("simulation reset")
}
