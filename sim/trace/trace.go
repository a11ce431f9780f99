package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every replica decision.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelPods additionally captures per-pod utilization each tick.
	TraceLevelPods TraceLevel = "pods"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	TraceLevelPods:      true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// Enabled reports whether any records are collected.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelDecisions || c.Level == TraceLevelPods
}

// SimulationTrace collects decision records during a fleet simulation.
type SimulationTrace struct {
	Config    TraceConfig     `json:"-" yaml:"-"`
	Decisions []ScalingRecord `json:"decisions" yaml:"decisions"`
	Pods      []PodRecord     `json:"pods,omitempty" yaml:"pods,omitempty"`
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Decisions: make([]ScalingRecord, 0),
		Pods:      make([]PodRecord, 0),
	}
}

// RecordDecision appends a replica decision record.
func (st *SimulationTrace) RecordDecision(record ScalingRecord) {
	st.Decisions = append(st.Decisions, record)
}

// RecordPod appends a pod record. Dropped unless the level is TraceLevelPods.
func (st *SimulationTrace) RecordPod(record PodRecord) {
	if st.Config.Level != TraceLevelPods {
		return
	}
	st.Pods = append(st.Pods, record)
}
