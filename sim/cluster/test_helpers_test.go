package cluster

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/autoscale-sim/autoscale-sim/sim"
	_ "github.com/autoscale-sim/autoscale-sim/sim/workload"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// flatConfig holds 30 users on a linear pattern with every user type weighing
// 25m CPU and 25.6MiB memory.
func flatConfig() *sim.RuntimeConfig {
	cfg := sim.DefaultRuntimeConfig()
	flat := sim.ResourceMultiplier{CPU: 0.5, Memory: 0.5}
	cfg.UserPatterns = map[sim.UserType]sim.ResourceMultiplier{
		sim.UserLight: flat, sim.UserMedium: flat, sim.UserHeavy: flat,
	}
	cfg.UserResources = &sim.ResourceMultiplier{CPU: 5, Memory: 5}
	cfg.DefaultLoadProfile = sim.LoadProfile{
		Pattern:      sim.PatternLinear,
		MaxUsers:     100,
		InitialUsers: 30,
	}
	cfg.PodResources = sim.PodResources{Limits: sim.ResourceLimits{CPU: "1000m", Memory: "1Gi"}}
	return cfg
}

func newTestFleet(config FleetConfig, seed int64) (*FleetSimulator, *sim.SimulationContext) {
	ctx := sim.NewSimulationContext(seed, clockwork.NewFakeClockAt(epoch))
	return NewFleetSimulator(config, ctx, flatConfig().PodResources), ctx
}
