// Package testutil provides shared test infrastructure for the simulator.
// It holds golden scenario types and assertion helpers used across sim/ and
// sim/cluster/ test packages. It has no dependency on sim/ so that package
// sim's internal tests can import it.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/golden_scenarios.json.
type GoldenDataset struct {
	Scenarios []GoldenScenario `json:"scenarios"`
}

// GoldenScenario is one hand-computed tick: a fixed pod set with fixed user
// assignments and the expected utilization and decision.
type GoldenScenario struct {
	Name            string                `json:"name"`
	UserResources   GoldenPair            `json:"user_resources"`
	UserPatterns    map[string]GoldenPair `json:"user_patterns,omitempty"`
	Pods            []GoldenPod           `json:"pods"`
	Users           []GoldenUserGroup     `json:"users"`
	Scaling         GoldenScaling         `json:"scaling"`
	CurrentReplicas int                   `json:"current_replicas"`
	Expected        GoldenExpected        `json:"expected"`
}

// GoldenPair is a {cpu, memory} figure.
type GoldenPair struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
}

// GoldenPod is a pod with its limit strings.
type GoldenPod struct {
	Name   string `json:"name"`
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

// GoldenUserGroup is Count users of Type assigned to Pod.
type GoldenUserGroup struct {
	Pod   string `json:"pod"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// GoldenScaling mirrors the scaling thresholds and bounds.
type GoldenScaling struct {
	CPUThreshold    float64 `json:"cpu_threshold"`
	MemoryThreshold float64 `json:"memory_threshold"`
	MinReplicas     int     `json:"min_replicas"`
	MaxReplicas     int     `json:"max_replicas"`
}

// GoldenPodMetrics is the expected per-pod record.
type GoldenPodMetrics struct {
	Name        string  `json:"name"`
	CPU         float64 `json:"cpu"`
	Memory      float64 `json:"memory"`
	ActiveUsers int     `json:"active_users"`
	RawCPU      float64 `json:"raw_cpu_usage"`
	RawMemory   float64 `json:"raw_memory_usage"`
}

// GoldenExpected holds the expected outputs of a scenario.
type GoldenExpected struct {
	Pods            []GoldenPodMetrics `json:"pods"`
	AvgCPU          float64            `json:"avg_cpu"`
	AvgMemory       float64            `json:"avg_memory"`
	TotalUsers      int                `json:"total_users"`
	DesiredReplicas int                `json:"desired_replicas"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "golden_scenarios.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
