package sim

import (
	"errors"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

var (
	// ErrMalformedQuantity reports a resource string that does not parse as
	// {numeric, suffix}.
	ErrMalformedQuantity = errors.New("malformed resource quantity")

	// ErrInvalidPodLimits reports a pod whose CPU or memory limit is zero,
	// which would otherwise turn utilization into NaN or +Inf.
	ErrInvalidPodLimits = errors.New("invalid pod limits")
)

// QuantitySuffix is the unit tag of a parsed resource string.
type QuantitySuffix string

const (
	SuffixNone  QuantitySuffix = ""
	SuffixMilli QuantitySuffix = "m"
	SuffixMi    QuantitySuffix = "Mi"
	SuffixGi    QuantitySuffix = "Gi"
)

// ResourceQuantity is a resource string split into its numeric part and unit
// suffix. Only m, Mi and Gi change the scale; any other suffix the Kubernetes
// grammar accepts (M, G, Ki, e3) is kept in Suffix but leaves Value in the
// default unit.
type ResourceQuantity struct {
	Raw    string
	Value  float64
	Suffix QuantitySuffix
}

// ParseResourceQuantity validates s with the Kubernetes quantity grammar and
// splits it into {numeric, suffix}.
func ParseResourceQuantity(s string) (ResourceQuantity, error) {
	trimmed := strings.TrimSpace(s)
	q, err := resource.ParseQuantity(trimmed)
	if err != nil {
		return ResourceQuantity{}, fmt.Errorf("%w %q: %v", ErrMalformedQuantity, s, err)
	}
	if q.Sign() < 0 {
		return ResourceQuantity{}, fmt.Errorf("%w %q: negative value", ErrMalformedQuantity, s)
	}
	numeric, suffix := splitQuantity(trimmed)
	n, err := resource.ParseQuantity(numeric)
	if err != nil {
		return ResourceQuantity{}, fmt.Errorf("%w %q: %v", ErrMalformedQuantity, s, err)
	}
	return ResourceQuantity{Raw: s, Value: n.AsApproximateFloat64(), Suffix: QuantitySuffix(suffix)}, nil
}

// ParseCPUQuantity returns the CPU value of s in millicores.
// "500m" is 500; "2" is 2000. Any suffix other than m reads as cores.
func ParseCPUQuantity(s string) (float64, error) {
	rq, err := ParseResourceQuantity(s)
	if err != nil {
		return 0, err
	}
	if rq.Suffix == SuffixMilli {
		return rq.Value, nil
	}
	return rq.Value * 1000, nil
}

// ParseMemoryQuantity returns the memory value of s in MiB.
// "1Gi" is 1024 and "512Mi" is 512. A bare number or any other suffix is
// already MiB, so "512M" is 512.
func ParseMemoryQuantity(s string) (float64, error) {
	rq, err := ParseResourceQuantity(s)
	if err != nil {
		return 0, err
	}
	if rq.Suffix == SuffixGi {
		return rq.Value * 1024, nil
	}
	return rq.Value, nil
}

// ParseCPU is ParseCPUQuantity with malformed input mapped to 0.
func ParseCPU(s string) float64 {
	v, _ := ParseCPUQuantity(s)
	return v
}

// ParseMemory is ParseMemoryQuantity with malformed input mapped to 0.
func ParseMemory(s string) float64 {
	v, _ := ParseMemoryQuantity(s)
	return v
}

// PodLimits is a pod's limits in normalized units.
type PodLimits struct {
	CPUMillis float64
	MemoryMiB float64
}

// ParsePodLimits parses both limits and rejects zero values.
func ParsePodLimits(r PodResources) (PodLimits, error) {
	cpu, err := ParseCPUQuantity(r.Limits.CPU)
	if err != nil {
		return PodLimits{}, fmt.Errorf("cpu limit: %w", err)
	}
	mem, err := ParseMemoryQuantity(r.Limits.Memory)
	if err != nil {
		return PodLimits{}, fmt.Errorf("memory limit: %w", err)
	}
	limits := PodLimits{CPUMillis: cpu, MemoryMiB: mem}
	if cpu == 0 || mem == 0 {
		return limits, fmt.Errorf("%w: cpu=%q memory=%q", ErrInvalidPodLimits, r.Limits.CPU, r.Limits.Memory)
	}
	return limits, nil
}

// splitQuantity cuts s at the first byte that cannot be part of a signed
// decimal number.
func splitQuantity(s string) (numeric, suffix string) {
	i := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '.' && r != '+' && r != '-'
	})
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}
