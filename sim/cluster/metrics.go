package cluster

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/autoscale-sim/autoscale-sim/sim/trace"
)

// Distribution captures statistical summary of a metric.
type Distribution struct {
	Mean  float64 `json:"mean" yaml:"mean"`
	P50   float64 `json:"p50" yaml:"p50"`
	P95   float64 `json:"p95" yaml:"p95"`
	P99   float64 `json:"p99" yaml:"p99"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Count int     `json:"count" yaml:"count"`
}

// NewDistribution computes a Distribution from raw values. Percentiles use
// the empirical quantile: the smallest value whose cumulative share reaches p.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
		Min:   floats.Min(sorted),
		Max:   floats.Max(sorted),
		Count: len(sorted),
	}
}

// Report summarizes a fleet run.
type Report struct {
	RunID    string                 `json:"runId" yaml:"run_id"`
	Seed     int64                  `json:"seed" yaml:"seed"`
	Ticks    int                    `json:"ticks" yaml:"ticks"`
	Replicas Distribution           `json:"replicas" yaml:"replicas"` // desired replicas per tick
	CPU      Distribution           `json:"cpu" yaml:"cpu"`           // fleet average CPU % per tick
	Memory   Distribution           `json:"memory" yaml:"memory"`     // fleet average memory % per tick
	Users    Distribution           `json:"users" yaml:"users"`       // active users per tick
	Summary  *trace.TraceSummary    `json:"summary,omitempty" yaml:"summary,omitempty"`
	Trace    *trace.SimulationTrace `json:"trace,omitempty" yaml:"trace,omitempty"`
	Records  []TickReport           `json:"records,omitempty" yaml:"records,omitempty"`
}

// NewReport builds a Report from the per-tick records of a run.
// st may be nil when tracing is disabled.
func NewReport(runID string, seed int64, records []TickReport, st *trace.SimulationTrace) *Report {
	replicas := make([]float64, len(records))
	cpu := make([]float64, len(records))
	memory := make([]float64, len(records))
	users := make([]float64, len(records))
	for i, r := range records {
		replicas[i] = float64(r.DesiredReplicas)
		cpu[i] = r.Fleet.CPU
		memory[i] = r.Fleet.Memory
		users[i] = float64(r.Fleet.TotalUsers)
	}
	report := &Report{
		RunID:    runID,
		Seed:     seed,
		Ticks:    len(records),
		Replicas: NewDistribution(replicas),
		CPU:      NewDistribution(cpu),
		Memory:   NewDistribution(memory),
		Users:    NewDistribution(users),
		Records:  records,
	}
	if st != nil && st.Config.Enabled() {
		report.Trace = st
		report.Summary = trace.Summarize(st)
	}
	return report
}
