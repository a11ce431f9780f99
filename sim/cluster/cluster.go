package cluster

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/autoscale-sim/autoscale-sim/sim"
	"github.com/autoscale-sim/autoscale-sim/sim/trace"
)

// TickReport is everything one fleet tick produced.
type TickReport struct {
	Tick            int              `json:"tick" yaml:"tick"`
	Clock           time.Time        `json:"clock" yaml:"clock"`
	Pattern         string           `json:"pattern" yaml:"pattern"`
	TargetUsers     int              `json:"targetUsers" yaml:"target_users"`
	Pods            []sim.PodMetrics `json:"pods" yaml:"pods"`
	Fleet           sim.FleetUsage   `json:"fleet" yaml:"fleet"`
	CurrentReplicas int              `json:"currentReplicas" yaml:"current_replicas"`
	DesiredReplicas int              `json:"desiredReplicas" yaml:"desired_replicas"`
	Action          trace.Action     `json:"action" yaml:"action"`
	Errors          []string         `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// advancer is implemented by fake clocks.
type advancer interface {
	Advance(d time.Duration)
}

// FleetSimulator drives full ticks of the engine over a pod set.
// Each Step reconciles the population, assigns users to pods, estimates
// per-pod utilization, aggregates it and asks the scaler for a replica count.
// Observed CPU is written back to the pods as the next tick's balancing hint.
// Methods are safe for concurrent use.
type FleetSimulator struct {
	mu        sync.Mutex
	config    FleetConfig
	ctx       *sim.SimulationContext
	resources sim.PodResources
	pods      []sim.Pod
	nextPod   int
	tick      int
	trace     *trace.SimulationTrace
	records   []TickReport
}

// NewFleetSimulator creates a FleetSimulator with config.InitialPods pods
// carrying resources. Panics if config is invalid or ctx is nil.
func NewFleetSimulator(config FleetConfig, ctx *sim.SimulationContext, resources sim.PodResources) *FleetSimulator {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("FleetSimulator: %v", err))
	}
	if ctx == nil {
		panic("FleetSimulator: nil simulation context")
	}
	f := &FleetSimulator{
		config:    config,
		ctx:       ctx,
		resources: resources,
	}
	f.resetLocked()
	return f
}

func (f *FleetSimulator) resetLocked() {
	f.pods = nil
	f.nextPod = 0
	f.tick = 0
	f.records = nil
	f.trace = nil
	if f.config.Trace.Enabled() {
		f.trace = trace.NewSimulationTrace(f.config.Trace)
	}
	f.resizeLocked(f.config.InitialPods, f.resources)
}

// Step runs one tick against cfg and returns its report. A nil cfg yields a
// report with zero usage and the replica count unchanged.
func (f *FleetSimulator) Step(cfg *sim.RuntimeConfig) TickReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := f.ctx.Tick(cfg)
	assigned := sim.DistributeUsers(res.Users, f.pods)
	f.ctx.Assign(assigned)

	report := TickReport{
		Tick:            f.tick,
		Clock:           res.Clock,
		Pattern:         res.Pattern,
		TargetUsers:     res.Target,
		Pods:            make([]sim.PodMetrics, 0, len(f.pods)),
		CurrentReplicas: len(f.pods),
	}
	for i := range f.pods {
		pod := &f.pods[i]
		m, err := sim.SimulatePodUsage(pod, assigned, cfg, res.Clock)
		errText := ""
		if err != nil {
			logrus.Warnf("tick %d: %v", f.tick, err)
			errText = err.Error()
			report.Errors = append(report.Errors, errText)
		}
		pod.Metrics = &sim.PodUsage{CPU: m.CPU, Memory: m.Memory}
		report.Pods = append(report.Pods, m)
		if f.trace != nil {
			f.trace.RecordPod(trace.PodRecord{
				Tick:        f.tick,
				PodName:     m.PodName,
				CPU:         m.CPU,
				Memory:      m.Memory,
				ActiveUsers: m.ActiveUsers,
				Error:       errText,
			})
		}
	}

	report.Fleet = sim.CalculateAverageUsage(report.Pods)
	report.DesiredReplicas = report.CurrentReplicas
	reason := ""
	if cfg != nil {
		report.DesiredReplicas = sim.ScaleReplicas(report.CurrentReplicas, report.Fleet.CPU, report.Fleet.Memory,
			report.Fleet.TotalUsers, cfg.ScalingConfig)
		reason = dominantResource(report.Fleet, cfg.ScalingConfig)
	}
	report.Action = trace.ClassifyAction(report.CurrentReplicas, report.DesiredReplicas)

	if f.trace != nil {
		f.trace.RecordDecision(trace.ScalingRecord{
			Tick:            f.tick,
			Clock:           res.Clock,
			Pattern:         res.Pattern,
			TargetUsers:     res.Target,
			CurrentReplicas: report.CurrentReplicas,
			DesiredReplicas: report.DesiredReplicas,
			AvgCPU:          report.Fleet.CPU,
			AvgMemory:       report.Fleet.Memory,
			Action:          report.Action,
			Reason:          reason,
		})
	}

	logrus.WithFields(logrus.Fields{
		"run":     f.ctx.ID(),
		"tick":    f.tick,
		"users":   report.Fleet.TotalUsers,
		"cpu":     report.Fleet.CPU,
		"memory":  report.Fleet.Memory,
		"current": report.CurrentReplicas,
		"desired": report.DesiredReplicas,
	}).Debug("scaling decision")

	if f.config.ApplyDecisions && cfg != nil {
		f.resizeLocked(report.DesiredReplicas, cfg.PodResources)
		f.unassignDroppedLocked(assigned)
	}
	f.records = append(f.records, report)
	f.tick++
	return report
}

// Run executes ticks steps against cfg, advancing the context clock by
// interval between them. A fake clock is advanced directly; a real clock is
// slept on. Returns the reports in tick order.
func (f *FleetSimulator) Run(cfg *sim.RuntimeConfig, ticks int, interval time.Duration) []TickReport {
	reports := make([]TickReport, 0, max(ticks, 0))
	clock := f.ctx.Clock()
	for i := 0; i < ticks; i++ {
		if i > 0 {
			if fake, ok := clock.(advancer); ok {
				fake.Advance(interval)
			} else {
				clock.Sleep(interval)
			}
		}
		reports = append(reports, f.Step(cfg))
	}
	return reports
}

// resizeLocked grows the pod set with fresh pods or drops pods from the end.
func (f *FleetSimulator) resizeLocked(n int, resources sim.PodResources) {
	if n < 0 {
		n = 0
	}
	for len(f.pods) < n {
		f.pods = append(f.pods, sim.Pod{
			Name:      fmt.Sprintf("%s-%d", f.config.podPrefix(), f.nextPod),
			Resources: resources,
		})
		f.nextPod++
	}
	if len(f.pods) > n {
		f.pods = f.pods[:n]
	}
}

// unassignDroppedLocked clears the pod of every user whose pod was removed
// by a resize, so no session points at a pod outside the current set.
func (f *FleetSimulator) unassignDroppedLocked(assigned []sim.UserSession) {
	live := make(map[string]bool, len(f.pods))
	for _, p := range f.pods {
		live[p.Name] = true
	}
	var stale []sim.UserSession
	for _, u := range assigned {
		if u.PodName != "" && !live[u.PodName] {
			u.PodName = ""
			stale = append(stale, u)
		}
	}
	if len(stale) > 0 {
		f.ctx.Assign(stale)
	}
}

// dominantResource names the resource asking for more replicas.
func dominantResource(fleet sim.FleetUsage, cfg sim.ScalingConfig) string {
	cpu, memory := 0.0, 0.0
	if cfg.CPUThreshold > 0 {
		cpu = fleet.CPU / cfg.CPUThreshold
	}
	if cfg.MemoryThreshold > 0 {
		memory = fleet.Memory / cfg.MemoryThreshold
	}
	if memory > cpu {
		return "memory"
	}
	return "cpu"
}

// Reset returns the fleet and its context to their initial state.
func (f *FleetSimulator) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx.Reset()
	f.resetLocked()
}

// Pods returns a copy of the current pod set.
func (f *FleetSimulator) Pods() []sim.Pod {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sim.Pod, len(f.pods))
	for i, p := range f.pods {
		out[i] = p
		if p.Metrics != nil {
			m := *p.Metrics
			out[i].Metrics = &m
		}
	}
	return out
}

// Replicas returns the current pod count.
func (f *FleetSimulator) Replicas() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pods)
}

// Latest returns the most recent tick report, if any.
func (f *FleetSimulator) Latest() (TickReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return TickReport{}, false
	}
	return f.records[len(f.records)-1], true
}

// Context returns the simulation context the fleet drives.
func (f *FleetSimulator) Context() *sim.SimulationContext {
	return f.ctx
}

// Report summarizes every tick since creation or the last Reset.
func (f *FleetSimulator) Report() *Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]TickReport, len(f.records))
	copy(records, f.records)
	return NewReport(f.ctx.ID(), f.ctx.Seed(), records, f.trace)
}
