package cluster

import (
	"fmt"

	"github.com/autoscale-sim/autoscale-sim/sim/trace"
)

// DefaultPodPrefix names pods created by the fleet loop.
const DefaultPodPrefix = "pod"

// FleetConfig describes the simulated deployment: how many pods start, how new
// ones are named, whether decisions are applied and what is traced.
type FleetConfig struct {
	InitialPods int
	PodPrefix   string // empty = DefaultPodPrefix

	// ApplyDecisions resizes the pod set to each tick's desired replica count.
	// When false the decision is advisory and the pod set stays fixed.
	ApplyDecisions bool

	Trace trace.TraceConfig
}

// Validate checks the fleet parameters.
func (c FleetConfig) Validate() error {
	if c.InitialPods < 0 {
		return fmt.Errorf("initial pods must be >= 0, got %d", c.InitialPods)
	}
	if !trace.IsValidTraceLevel(string(c.Trace.Level)) {
		return fmt.Errorf("unknown trace level %q; valid: none, decisions, pods", c.Trace.Level)
	}
	return nil
}

func (c FleetConfig) podPrefix() string {
	if c.PodPrefix == "" {
		return DefaultPodPrefix
	}
	return c.PodPrefix
}
