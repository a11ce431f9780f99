package sim

import "math"

// ScaleReplicas returns the desired replica count.
//
// Each resource asks for ceil(current × average / threshold) replicas and the
// larger request wins; the result is clamped to [MinReplicas, MaxReplicas].
// A non-positive threshold disables its resource. totalUsers is accepted for
// signature stability and does not affect the result.
func ScaleReplicas(currentReplicas int, avgCPU, avgMemory float64, totalUsers int, cfg ScalingConfig) int {
	desired := max(
		desiredFor(currentReplicas, avgCPU, cfg.CPUThreshold),
		desiredFor(currentReplicas, avgMemory, cfg.MemoryThreshold),
	)
	if desired < cfg.MinReplicas {
		desired = cfg.MinReplicas
	}
	if desired > cfg.MaxReplicas {
		desired = cfg.MaxReplicas
	}
	return desired
}

func desiredFor(current int, avg, threshold float64) int {
	if !(threshold > 0) || math.IsNaN(avg) {
		return 0
	}
	d := math.Ceil(float64(current) * avg / threshold)
	if d > math.MaxInt32 {
		return math.MaxInt32
	}
	if d < 0 {
		return 0
	}
	return int(d)
}
