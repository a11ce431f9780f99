// Package trace provides decision-trace recording for autoscaling analysis.
// This package has no dependencies on sim/ or sim/cluster/; it stores pure data types.
package trace

import "time"

// Action classifies a replica decision relative to the current count.
type Action string

const (
	ActionScaleUp   Action = "scale_up"
	ActionScaleDown Action = "scale_down"
	ActionHold      Action = "hold"
)

// ClassifyAction returns the action that moves current to desired.
func ClassifyAction(current, desired int) Action {
	switch {
	case desired > current:
		return ActionScaleUp
	case desired < current:
		return ActionScaleDown
	default:
		return ActionHold
	}
}

// ScalingRecord captures a single replica decision.
type ScalingRecord struct {
	Tick            int       `json:"tick" yaml:"tick"`
	Clock           time.Time `json:"clock" yaml:"clock"`
	Pattern         string    `json:"pattern" yaml:"pattern"`
	TargetUsers     int       `json:"targetUsers" yaml:"target_users"`
	CurrentReplicas int       `json:"currentReplicas" yaml:"current_replicas"`
	DesiredReplicas int       `json:"desiredReplicas" yaml:"desired_replicas"`
	AvgCPU          float64   `json:"avgCpu" yaml:"avg_cpu"`
	AvgMemory       float64   `json:"avgMemory" yaml:"avg_memory"`
	Action          Action    `json:"action" yaml:"action"`
	Reason          string    `json:"reason,omitempty" yaml:"reason,omitempty"` // dominant resource, e.g. "cpu"
}

// PodRecord captures one pod's utilization at a tick.
type PodRecord struct {
	Tick        int     `json:"tick" yaml:"tick"`
	PodName     string  `json:"podName" yaml:"pod_name"`
	CPU         float64 `json:"cpu" yaml:"cpu"`
	Memory      float64 `json:"memory" yaml:"memory"`
	ActiveUsers int     `json:"activeUsers" yaml:"active_users"`
	Error       string  `json:"error,omitempty" yaml:"error,omitempty"`
}
