package sim

import (
	"errors"
	"fmt"
	"time"
)

// UnknownPod names the record produced for a nil pod.
const UnknownPod = "unknown"

// ResourceUsage is an estimated absolute consumption.
type ResourceUsage struct {
	CPUMillis float64 `json:"cpuMillis"`
	MemoryMiB float64 `json:"memoryMiB"`
}

// RawUsage keeps the unclamped numbers behind a PodMetrics record.
type RawUsage struct {
	CPUUsage    float64 `json:"cpuUsage"`    // millicores
	CPULimit    float64 `json:"cpuLimit"`    // millicores
	MemoryUsage float64 `json:"memoryUsage"` // MiB
	MemoryLimit float64 `json:"memoryLimit"` // MiB
}

// PodMetrics is the per-pod utilization record for one tick.
// CPU and Memory are percentages clamped to [0, 100].
type PodMetrics struct {
	PodName     string    `json:"podName"`
	CPU         float64   `json:"cpu"`
	Memory      float64   `json:"memory"`
	Timestamp   time.Time `json:"timestamp"`
	ActiveUsers int       `json:"activeUsers"`
	Raw         RawUsage  `json:"raw"`
}

// LoadMultiplier returns the multiplier for userType from cfg.UserPatterns,
// or from the built-in table when cfg carries none. A type missing from the
// table falls back to the medium entry.
func LoadMultiplier(userType UserType, cfg *RuntimeConfig) ResourceMultiplier {
	patterns := defaultUserPatterns
	if cfg != nil && len(cfg.UserPatterns) > 0 {
		patterns = cfg.UserPatterns
	}
	if m, ok := patterns[userType]; ok {
		return m
	}
	if m, ok := patterns[UserMedium]; ok {
		return m
	}
	return defaultUserPatterns[UserMedium]
}

// EstimateResources sums the estimated consumption of users. One user
// consumes UserResources.CPU percent of a core and UserResources.Memory
// percent of a GiB, scaled by its type multiplier. A nil config or nil
// UserResources yields zero usage.
func EstimateResources(users []UserSession, cfg *RuntimeConfig) ResourceUsage {
	var usage ResourceUsage
	if cfg == nil || cfg.UserResources == nil {
		return usage
	}
	baseCPU := cfg.UserResources.CPU / 100 * 1000
	baseMemory := cfg.UserResources.Memory / 100 * 1024
	for _, u := range users {
		m := LoadMultiplier(u.Type, cfg)
		usage.CPUMillis += baseCPU * m.CPU
		usage.MemoryMiB += baseMemory * m.Memory
	}
	return usage
}

// SimulatePodUsage computes the utilization record for pod from the users
// assigned to it.
//
// A nil pod or config yields a zeroed record and no error. A zero or
// malformed limit yields a record whose percentage for that resource is 0,
// together with an error wrapping ErrInvalidPodLimits; the raw figures are
// still filled in.
func SimulatePodUsage(pod *Pod, users []UserSession, cfg *RuntimeConfig, now time.Time) (PodMetrics, error) {
	if pod == nil {
		return PodMetrics{PodName: UnknownPod, Timestamp: now}, nil
	}
	metrics := PodMetrics{PodName: pod.Name, Timestamp: now}
	if cfg == nil {
		return metrics, nil
	}

	assigned := make([]UserSession, 0, len(users))
	for _, u := range users {
		if u.PodName == pod.Name {
			assigned = append(assigned, u)
		}
	}
	usage := EstimateResources(assigned, cfg)
	metrics.ActiveUsers = len(assigned)

	limits, err := ParsePodLimits(pod.Resources)
	if err != nil && !errors.Is(err, ErrInvalidPodLimits) {
		// malformed strings parse to 0 and are reported as invalid limits
		limits = PodLimits{CPUMillis: ParseCPU(pod.Resources.Limits.CPU), MemoryMiB: ParseMemory(pod.Resources.Limits.Memory)}
		err = fmt.Errorf("%w: %v", ErrInvalidPodLimits, err)
	}
	if err != nil {
		err = fmt.Errorf("pod %s: %w", pod.Name, err)
	}

	metrics.Raw = RawUsage{
		CPUUsage:    usage.CPUMillis,
		CPULimit:    limits.CPUMillis,
		MemoryUsage: usage.MemoryMiB,
		MemoryLimit: limits.MemoryMiB,
	}
	metrics.CPU = percentage(usage.CPUMillis, limits.CPUMillis)
	metrics.Memory = percentage(usage.MemoryMiB, limits.MemoryMiB)
	return metrics, err
}

// percentage returns usage/limit*100 clamped to [0, 100]; 0 when limit is 0.
func percentage(usage, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return clamp(usage/limit*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
