package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions      int         `json:"totalDecisions" yaml:"total_decisions"`
	ScaleUpCount        int         `json:"scaleUpCount" yaml:"scale_up_count"`
	ScaleDownCount      int         `json:"scaleDownCount" yaml:"scale_down_count"`
	HoldCount           int         `json:"holdCount" yaml:"hold_count"`
	MaxStep             int         `json:"maxStep" yaml:"max_step"` // largest |desired - current|
	Flaps               int         `json:"flaps" yaml:"flaps"`      // direction reversals between consecutive non-hold decisions
	PodErrors           int         `json:"podErrors" yaml:"pod_errors"`
	ReplicaDistribution map[int]int `json:"replicaDistribution" yaml:"replica_distribution"` // desired replicas → tick count
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		ReplicaDistribution: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Decisions)
	var last Action
	for _, d := range st.Decisions {
		switch d.Action {
		case ActionScaleUp:
			summary.ScaleUpCount++
		case ActionScaleDown:
			summary.ScaleDownCount++
		default:
			summary.HoldCount++
		}
		if d.Action != ActionHold {
			if last != "" && last != d.Action {
				summary.Flaps++
			}
			last = d.Action
		}
		step := d.DesiredReplicas - d.CurrentReplicas
		if step < 0 {
			step = -step
		}
		if step > summary.MaxStep {
			summary.MaxStep = step
		}
		summary.ReplicaDistribution[d.DesiredReplicas]++
	}

	for _, p := range st.Pods {
		if p.Error != "" {
			summary.PodErrors++
		}
	}

	return summary
}
