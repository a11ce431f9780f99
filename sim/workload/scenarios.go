package workload

import (
	"fmt"
	"sort"

	"github.com/autoscale-sim/autoscale-sim/sim"
)

// Built-in scenario presets for common traffic shapes.
// Each returns a valid RuntimeConfig layered over sim.DefaultRuntimeConfig.

// ScenarioFlashSale creates a config with short, tall spikes every ten minutes.
func ScenarioFlashSale() *sim.RuntimeConfig {
	cfg := sim.DefaultRuntimeConfig()
	cfg.DefaultLoadProfile = sim.LoadProfile{
		Pattern: sim.PatternSpike, BaseLoad: 60, Amplitude: 340, Period: 600,
		MaxUsers: 500, InitialUsers: 10,
	}
	cfg.MaxReplicas = 20
	return cfg
}

// ScenarioBusinessDay creates a config that follows office hours.
func ScenarioBusinessDay() *sim.RuntimeConfig {
	cfg := sim.DefaultRuntimeConfig()
	cfg.DefaultLoadProfile = sim.LoadProfile{
		Pattern: sim.PatternDaily, BaseLoad: 150, Amplitude: 120,
		MaxUsers: 400, InitialUsers: 10,
	}
	return cfg
}

// ScenarioSteadyGrowth creates a config that ramps linearly until saturation.
func ScenarioSteadyGrowth() *sim.RuntimeConfig {
	cfg := sim.DefaultRuntimeConfig()
	cfg.DefaultLoadProfile = sim.LoadProfile{
		Pattern: sim.PatternLinear, MaxUsers: 300, UserGrowthRate: 10, InitialUsers: 5,
	}
	return cfg
}

// ScenarioNoisyNeighbors creates a config with random load, frequent spikes
// and a heavy-skewed user mix.
func ScenarioNoisyNeighbors() *sim.RuntimeConfig {
	cfg := sim.DefaultRuntimeConfig()
	cfg.DefaultLoadProfile = sim.LoadProfile{
		Pattern: sim.PatternRandom, BaseLoad: 120, Amplitude: 80,
		SpikeProbability: 0.25, SpikeMultiplier: 2.5, MaxUsers: 500, InitialUsers: 10,
	}
	cfg.UserPatterns[sim.UserHeavy] = sim.ResourceMultiplier{CPU: 1.5, Memory: 2.0}
	return cfg
}

// ScenarioBatchWindows creates a config alternating busy and idle half hours.
func ScenarioBatchWindows() *sim.RuntimeConfig {
	cfg := sim.DefaultRuntimeConfig()
	cfg.DefaultLoadProfile = sim.LoadProfile{
		Pattern: sim.PatternSquare, BaseLoad: 20, Amplitude: 200, Period: 3600,
		MaxUsers: 300, InitialUsers: 0,
	}
	cfg.MemoryThreshold = 70
	return cfg
}

var scenarios = map[string]func() *sim.RuntimeConfig{
	"flash-sale":      ScenarioFlashSale,
	"business-day":    ScenarioBusinessDay,
	"steady-growth":   ScenarioSteadyGrowth,
	"noisy-neighbors": ScenarioNoisyNeighbors,
	"batch-windows":   ScenarioBatchWindows,
}

// ScenarioNames returns the preset names in sorted order.
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenario returns a fresh copy of the named preset.
func Scenario(name string) (*sim.RuntimeConfig, error) {
	build, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q; valid: %v", name, ScenarioNames())
	}
	return build(), nil
}
