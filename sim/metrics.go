package sim

import "gonum.org/v1/gonum/stat"

// FleetUsage is the fleet-wide view of one tick.
type FleetUsage struct {
	CPU        float64 `json:"cpu"`    // mean of per-pod CPU %
	Memory     float64 `json:"memory"` // mean of per-pod memory %
	TotalUsers int     `json:"totalUsers"`
}

// CalculateAverageUsage averages pod utilization and sums active users.
// Empty input returns the zero FleetUsage.
func CalculateAverageUsage(podMetrics []PodMetrics) FleetUsage {
	if len(podMetrics) == 0 {
		return FleetUsage{}
	}
	cpu := make([]float64, len(podMetrics))
	memory := make([]float64, len(podMetrics))
	total := 0
	for i, m := range podMetrics {
		cpu[i] = m.CPU
		memory[i] = m.Memory
		total += m.ActiveUsers
	}
	return FleetUsage{
		CPU:        stat.Mean(cpu, nil),
		Memory:     stat.Mean(memory, nil),
		TotalUsers: total,
	}
}
