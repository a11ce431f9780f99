package sim

import "sort"

// PodUsage is a pod's utilization in percent.
type PodUsage struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
}

// Pod is a replica as seen by the engine. Only Metrics.CPU is read back, as
// a load-balancing hint from the previous tick.
type Pod struct {
	Name      string       `json:"name"`
	Resources PodResources `json:"resources"`
	Metrics   *PodUsage    `json:"metrics,omitempty"`
}

// observedCPU returns the last observed CPU percentage, 0 when unknown.
func (p Pod) observedCPU() float64 {
	if p.Metrics == nil {
		return 0
	}
	return p.Metrics.CPU
}

// DistributeUsers assigns users to pods in contiguous blocks.
//
// Pods are stable-sorted by last observed CPU so the least loaded pods fill
// first; ties keep input order. With n users and p pods each pod receives at
// most n/p+1 users, user i going to sorted pod i/(n/p+1). With no pods every
// assignment is cleared. The input slice is not modified.
func DistributeUsers(users []UserSession, pods []Pod) []UserSession {
	out := make([]UserSession, len(users))
	copy(out, users)
	for i := range out {
		out[i].PodName = ""
	}
	if len(pods) == 0 {
		return out
	}

	sorted := make([]Pod, len(pods))
	copy(sorted, pods)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].observedCPU() < sorted[j].observedCPU()
	})

	capacityPerPod := len(out)/len(sorted) + 1
	for i := range out {
		idx := i / capacityPerPod
		if idx < len(sorted) {
			out[i].PodName = sorted[idx].Name
		}
	}
	return out
}
