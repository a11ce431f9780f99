package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoscale-sim/autoscale-sim/sim"
	"github.com/autoscale-sim/autoscale-sim/sim/trace"
)

func TestNewFleetSimulator_CreatesInitialPods(t *testing.T) {
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 3}, 1)

	pods := fleet.Pods()
	require.Len(t, pods, 3)
	assert.Equal(t, "pod-0", pods[0].Name)
	assert.Equal(t, "pod-2", pods[2].Name)
	assert.Equal(t, "1Gi", pods[1].Resources.Limits.Memory)
	assert.Nil(t, pods[0].Metrics)
}

func TestNewFleetSimulator_InvalidConfig_Panics(t *testing.T) {
	ctx := sim.NewSimulationContext(1, nil)
	assert.Panics(t, func() { NewFleetSimulator(FleetConfig{InitialPods: -1}, ctx, sim.PodResources{}) })
	assert.Panics(t, func() {
		NewFleetSimulator(FleetConfig{Trace: trace.TraceConfig{Level: "verbose"}}, ctx, sim.PodResources{})
	})
	assert.Panics(t, func() { NewFleetSimulator(FleetConfig{}, nil, sim.PodResources{}) })
}

func TestFleetSimulator_Step_AdvisoryDecision(t *testing.T) {
	// GIVEN 3 pods and 30 users at 25m/25.6MiB each
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 3}, 1)

	// WHEN one tick runs
	report := fleet.Step(flatConfig())

	// THEN users split 11/11/8 and utilization follows
	require.Len(t, report.Pods, 3)
	assert.Equal(t, 30, report.TargetUsers)
	assert.Equal(t, 11, report.Pods[0].ActiveUsers)
	assert.Equal(t, 11, report.Pods[1].ActiveUsers)
	assert.Equal(t, 8, report.Pods[2].ActiveUsers)
	assert.InDelta(t, 27.5, report.Pods[0].CPU, 1e-9)
	assert.InDelta(t, 20, report.Pods[2].Memory, 1e-9)
	assert.InDelta(t, 25, report.Fleet.CPU, 1e-9)
	assert.Equal(t, 30, report.Fleet.TotalUsers)

	// THEN ceil(3*25/70) = 2 replicas are asked for, but the pod set is unchanged
	assert.Equal(t, 3, report.CurrentReplicas)
	assert.Equal(t, 2, report.DesiredReplicas)
	assert.Equal(t, trace.ActionScaleDown, report.Action)
	assert.Equal(t, 3, fleet.Replicas())
	assert.Empty(t, report.Errors)
}

func TestFleetSimulator_Step_WritesBackObservedCPU(t *testing.T) {
	fleet, ctx := newTestFleet(FleetConfig{InitialPods: 3}, 1)

	fleet.Step(flatConfig())

	pods := fleet.Pods()
	require.NotNil(t, pods[2].Metrics)
	assert.InDelta(t, 20, pods[2].Metrics.CPU, 1e-9)
	for _, u := range ctx.Users() {
		assert.NotEmpty(t, u.PodName, "assignment persisted for %s", u.ID)
	}
}

func TestFleetSimulator_Step_LeastLoadedPodFillsFirstNextTick(t *testing.T) {
	// GIVEN a tick that left pod-2 the least loaded
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 3}, 1)
	fleet.Step(flatConfig())

	// WHEN the next tick runs
	report := fleet.Step(flatConfig())

	// THEN pod-2 receives the first full block
	byName := map[string]int{}
	for _, m := range report.Pods {
		byName[m.PodName] = m.ActiveUsers
	}
	assert.Equal(t, map[string]int{"pod-0": 11, "pod-1": 8, "pod-2": 11}, byName)
}

func TestFleetSimulator_Step_AppliesDecisions(t *testing.T) {
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 3, ApplyDecisions: true}, 1)
	cfg := flatConfig()

	// WHEN the first tick asks for 2 replicas
	first := fleet.Step(cfg)
	require.Equal(t, 2, first.DesiredReplicas)

	// THEN the last pod is removed
	pods := fleet.Pods()
	require.Len(t, pods, 2)
	assert.Equal(t, "pod-0", pods[0].Name)
	assert.Equal(t, "pod-1", pods[1].Name)

	// WHEN the next tick runs on 2 pods
	second := fleet.Step(cfg)

	// THEN 16/14 users give 40%/35% and the count holds
	assert.Equal(t, 16, second.Pods[0].ActiveUsers)
	assert.Equal(t, 14, second.Pods[1].ActiveUsers)
	assert.InDelta(t, 37.5, second.Fleet.CPU, 1e-9)
	assert.Equal(t, 2, second.DesiredReplicas)
	assert.Equal(t, trace.ActionHold, second.Action)
}

func TestFleetSimulator_Step_ScaleDownUnassignsDroppedPodUsers(t *testing.T) {
	fleet, ctx := newTestFleet(FleetConfig{InitialPods: 3, ApplyDecisions: true}, 1)

	// WHEN a tick scales 3 pods down to 2
	report := fleet.Step(flatConfig())
	require.Equal(t, 2, report.DesiredReplicas)

	// THEN no user points at the removed pod
	live := make(map[string]bool)
	for _, p := range fleet.Pods() {
		live[p.Name] = true
	}
	unassigned := 0
	for _, u := range ctx.Users() {
		if u.PodName == "" {
			unassigned++
			continue
		}
		assert.True(t, live[u.PodName], "user %s on removed pod %s", u.ID, u.PodName)
	}
	// pod-2 held the last 8 users
	assert.Equal(t, 8, unassigned)
}

func TestFleetSimulator_Step_ScaleUpNamesNewPods(t *testing.T) {
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 3, ApplyDecisions: true, PodPrefix: "web"}, 1)
	cfg := flatConfig()
	cfg.CPUThreshold = 10
	cfg.MemoryThreshold = 10
	cfg.PodResources.Limits.CPU = "2"

	report := fleet.Step(cfg)

	// ceil(3*25/10) = 8
	assert.Equal(t, 8, report.DesiredReplicas)
	pods := fleet.Pods()
	require.Len(t, pods, 8)
	assert.Equal(t, "web-0", pods[0].Name)
	assert.Equal(t, "web-7", pods[7].Name)
	assert.Equal(t, "1000m", pods[0].Resources.Limits.CPU, "existing pods keep their limits")
	assert.Equal(t, "2", pods[7].Resources.Limits.CPU, "new pods use the tick's pod resources")
}

func TestFleetSimulator_Step_NilConfigHolds(t *testing.T) {
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 2, ApplyDecisions: true}, 1)

	report := fleet.Step(nil)

	assert.Equal(t, 2, report.DesiredReplicas)
	assert.Equal(t, trace.ActionHold, report.Action)
	assert.Equal(t, sim.FleetUsage{}, report.Fleet)
	assert.Equal(t, 2, fleet.Replicas())
}

func TestFleetSimulator_Step_InvalidLimitsReported(t *testing.T) {
	ctx := sim.NewSimulationContext(1, nil)
	bad := sim.PodResources{Limits: sim.ResourceLimits{CPU: "0", Memory: "1Gi"}}
	fleet := NewFleetSimulator(FleetConfig{InitialPods: 1}, ctx, bad)

	report := fleet.Step(flatConfig())

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "invalid pod limits")
	assert.Zero(t, report.Pods[0].CPU)
	assert.Greater(t, report.Pods[0].Memory, 0.0)
}

func TestFleetSimulator_Step_NoPods(t *testing.T) {
	fleet, ctx := newTestFleet(FleetConfig{InitialPods: 0}, 1)

	report := fleet.Step(flatConfig())

	assert.Empty(t, report.Pods)
	assert.Equal(t, sim.FleetUsage{}, report.Fleet)
	assert.Equal(t, 1, report.DesiredReplicas, "min replicas applies to an empty fleet")
	for _, u := range ctx.Users() {
		assert.Empty(t, u.PodName)
	}
}

func TestFleetSimulator_Run_AdvancesFakeClock(t *testing.T) {
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 2}, 1)

	reports := fleet.Run(flatConfig(), 3, 10*time.Second)

	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.Equal(t, i, r.Tick)
		assert.Equal(t, epoch.Add(time.Duration(i)*10*time.Second), r.Clock)
	}
	latest, ok := fleet.Latest()
	require.True(t, ok)
	assert.Equal(t, reports[2], latest)
}

func TestFleetSimulator_Run_ZeroTicks(t *testing.T) {
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 2}, 1)
	assert.Empty(t, fleet.Run(flatConfig(), 0, time.Second))
	_, ok := fleet.Latest()
	assert.False(t, ok)
}

func TestFleetSimulator_Reset_RestoresInitialState(t *testing.T) {
	fleet, ctx := newTestFleet(FleetConfig{InitialPods: 3, ApplyDecisions: true}, 1)
	fleet.Run(flatConfig(), 4, time.Second)

	fleet.Reset()

	assert.Equal(t, 3, fleet.Replicas())
	assert.Equal(t, "pod-2", fleet.Pods()[2].Name)
	_, ok := fleet.Latest()
	assert.False(t, ok)
	assert.Empty(t, ctx.Users())
	assert.Equal(t, 0, fleet.Step(flatConfig()).Tick)
}

func TestFleetSimulator_Trace_RecordsDecisionsAndPods(t *testing.T) {
	fleet, _ := newTestFleet(FleetConfig{InitialPods: 3, Trace: trace.TraceConfig{Level: trace.TraceLevelPods}}, 1)

	fleet.Run(flatConfig(), 5, time.Second)
	report := fleet.Report()

	require.NotNil(t, report.Trace)
	assert.Len(t, report.Trace.Decisions, 5)
	assert.Len(t, report.Trace.Pods, 15)
	assert.Equal(t, "cpu", report.Trace.Decisions[0].Reason)
	require.NotNil(t, report.Summary)
	assert.Equal(t, 5, report.Summary.ScaleDownCount)
	assert.Equal(t, 5, report.Summary.ReplicaDistribution[2])
}

func TestFleetSimulator_Report_WithoutTrace(t *testing.T) {
	fleet, ctx := newTestFleet(FleetConfig{InitialPods: 3}, 9)
	fleet.Run(flatConfig(), 2, time.Second)

	report := fleet.Report()

	assert.Equal(t, ctx.ID(), report.RunID)
	assert.Equal(t, int64(9), report.Seed)
	assert.Equal(t, 2, report.Ticks)
	assert.Len(t, report.Records, 2)
	assert.Nil(t, report.Trace)
	assert.Nil(t, report.Summary)
	assert.Equal(t, 2.0, report.Replicas.Max)
	assert.Equal(t, 30.0, report.Users.Mean)
}

func TestDominantResource(t *testing.T) {
	cfg := sim.ScalingConfig{CPUThreshold: 70, MemoryThreshold: 50}
	assert.Equal(t, "cpu", dominantResource(sim.FleetUsage{CPU: 70, Memory: 40}, cfg))
	assert.Equal(t, "memory", dominantResource(sim.FleetUsage{CPU: 70, Memory: 60}, cfg))
	assert.Equal(t, "cpu", dominantResource(sim.FleetUsage{}, cfg))
}
