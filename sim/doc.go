// Package sim provides the core decision engine for the autoscaler simulator.
//
// # Reading Guide
//
// Start with these files to understand one simulation tick:
//   - context.go: SimulationContext, the per-run owner of the user population and
//     the linear-pattern time origin; Tick reconciles the population to a target size
//   - assignment.go: DistributeUsers, block assignment of users to pods
//   - resources.go: per-pod usage estimation and utilization percentages
//   - metrics.go: fleet-wide averages
//   - scaler.go: ScaleReplicas, the clamped threshold decision
//
// # Architecture
//
// The sim package holds pure data types and single-tick operations; drivers live in
// sub-packages:
//   - sim/workload/: load patterns mapping elapsed time to a target user count, and
//     built-in load presets
//   - sim/cluster/: fleet loop that runs ticks over a pod set and applies decisions
//   - sim/trace/: scaling decision recording and summaries
//
// Nothing in this package performs I/O beyond LoadRuntimeConfig. All randomness flows
// through the Rand interface so that runs with the same seed replay exactly.
package sim
