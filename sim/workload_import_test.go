package sim_test

// Blank import triggers sim/workload's init(), which registers GenerateLoadFunc.
// This allows package sim's internal test files to tick a SimulationContext
// without directly importing sim/workload (which would create an import cycle).
import _ "github.com/autoscale-sim/autoscale-sim/sim/workload"
