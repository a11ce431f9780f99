package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// UserType classifies a synthetic user by how much load it generates.
type UserType string

const (
	UserLight  UserType = "light"
	UserMedium UserType = "medium"
	UserHeavy  UserType = "heavy"
)

// UserTypes lists the user types in draw order. Index positions are part of
// the replay contract: reordering changes which type a given seed produces.
var UserTypes = []UserType{UserLight, UserMedium, UserHeavy}

// Load pattern tags understood by workload.GenerateLoad.
const (
	PatternLinear   = "linear"
	PatternSine     = "sine"
	PatternSpike    = "spike"
	PatternSawtooth = "sawtooth"
	PatternSquare   = "square"
	PatternRandom   = "random"
	PatternDaily    = "daily"
)

var validPatterns = map[string]bool{
	PatternLinear: true, PatternSine: true, PatternSpike: true, PatternSawtooth: true,
	PatternSquare: true, PatternRandom: true, PatternDaily: true,
}

// periodicPatterns divide by LoadProfile.Period.
var periodicPatterns = map[string]bool{
	PatternSine: true, PatternSpike: true, PatternSawtooth: true, PatternSquare: true,
}

// IsKnownPattern reports whether pattern has a dedicated load formula.
func IsKnownPattern(pattern string) bool {
	return validPatterns[pattern]
}

// KnownPatterns returns the supported pattern tags in a stable order.
func KnownPatterns() []string {
	return []string{PatternLinear, PatternSine, PatternSpike, PatternSawtooth, PatternSquare, PatternRandom, PatternDaily}
}

// ResourceMultiplier is a {cpu, memory} pair. Used both as a per-type
// multiplier and as the baseline percentage of one unit of user load.
type ResourceMultiplier struct {
	CPU    float64 `yaml:"cpu" json:"cpu"`
	Memory float64 `yaml:"memory" json:"memory"`
}

// LoadProfile parameterizes the load patterns.
type LoadProfile struct {
	Pattern          string  `yaml:"pattern" json:"pattern"`
	BaseLoad         float64 `yaml:"base_load" json:"base_load"`
	Amplitude        float64 `yaml:"amplitude" json:"amplitude"`
	Period           float64 `yaml:"period" json:"period"` // seconds
	SpikeProbability float64 `yaml:"spike_probability" json:"spike_probability"`
	SpikeMultiplier  float64 `yaml:"spike_multiplier" json:"spike_multiplier"`
	MaxUsers         int     `yaml:"max_users" json:"max_users"`
	UserGrowthRate   float64 `yaml:"user_growth_rate" json:"user_growth_rate"` // users per minute (linear)
	InitialUsers     int     `yaml:"initial_users" json:"initial_users"`
}

// ResourceLimits holds resource-limit strings such as "500m" or "2Gi".
type ResourceLimits struct {
	CPU    string `yaml:"cpu" json:"cpu"`
	Memory string `yaml:"memory" json:"memory"`
}

// PodResources mirrors the limits block of a container spec.
type PodResources struct {
	Limits ResourceLimits `yaml:"limits" json:"limits"`
}

// ScalingConfig groups the replica decision parameters.
type ScalingConfig struct {
	CPUThreshold    float64 `yaml:"cpu_threshold" json:"cpu_threshold"`       // target average CPU %
	MemoryThreshold float64 `yaml:"memory_threshold" json:"memory_threshold"` // target average memory %
	MinReplicas     int     `yaml:"min_replicas" json:"min_replicas"`
	MaxReplicas     int     `yaml:"max_replicas" json:"max_replicas"`
}

// RuntimeConfig is the per-tick configuration. Callers supply it fresh on
// every tick; nothing in this package caches it across ticks.
type RuntimeConfig struct {
	UserPatterns       map[UserType]ResourceMultiplier `yaml:"user_patterns,omitempty" json:"user_patterns,omitempty"`
	UserResources      *ResourceMultiplier             `yaml:"user_resources,omitempty" json:"user_resources,omitempty"` // nil = zero usage
	DefaultLoadProfile LoadProfile                     `yaml:"default_load_profile" json:"default_load_profile"`
	ScalingConfig      `yaml:",inline"`
	PodResources       PodResources `yaml:"pod_resources" json:"pod_resources"`
}

var defaultUserPatterns = map[UserType]ResourceMultiplier{
	UserLight:  {CPU: 0.25, Memory: 0.25},
	UserMedium: {CPU: 0.5, Memory: 0.5},
	UserHeavy:  {CPU: 1.0, Memory: 1.0},
}

// DefaultUserPatterns returns a copy of the fallback multiplier table used
// when a config carries no user_patterns.
func DefaultUserPatterns() map[UserType]ResourceMultiplier {
	out := make(map[UserType]ResourceMultiplier, len(defaultUserPatterns))
	for k, v := range defaultUserPatterns {
		out[k] = v
	}
	return out
}

// DefaultRuntimeConfig returns the built-in scenario used when no config file is given.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		UserPatterns:  DefaultUserPatterns(),
		UserResources: &ResourceMultiplier{CPU: 2, Memory: 1},
		DefaultLoadProfile: LoadProfile{
			Pattern:          PatternSine,
			BaseLoad:         100,
			Amplitude:        50,
			Period:           300,
			SpikeProbability: 0.1,
			SpikeMultiplier:  3,
			MaxUsers:         500,
			UserGrowthRate:   5,
			InitialUsers:     10,
		},
		ScalingConfig: ScalingConfig{
			CPUThreshold:    70,
			MemoryThreshold: 80,
			MinReplicas:     1,
			MaxReplicas:     10,
		},
		PodResources: PodResources{Limits: ResourceLimits{CPU: "500m", Memory: "512Mi"}},
	}
}

// LoadRuntimeConfig reads a YAML scenario file on top of DefaultRuntimeConfig.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading runtime config: %w", err)
	}
	cfg, err := ParseRuntimeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing runtime config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseRuntimeConfig strictly decodes YAML (or JSON, which is valid YAML)
// over the defaults. An empty document yields the defaults unchanged.
func ParseRuntimeConfig(data []byte) (*RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all fields in the config are usable.
func (c *RuntimeConfig) Validate() error {
	if err := c.DefaultLoadProfile.Validate(); err != nil {
		return fmt.Errorf("default_load_profile: %w", err)
	}
	if err := c.ScalingConfig.Validate(); err != nil {
		return err
	}
	for userType, m := range c.UserPatterns {
		if !isKnownUserType(userType) {
			return fmt.Errorf("user_patterns: unknown user type %q; valid: light, medium, heavy", userType)
		}
		if err := validateNonNegative(fmt.Sprintf("user_patterns.%s.cpu", userType), m.CPU); err != nil {
			return err
		}
		if err := validateNonNegative(fmt.Sprintf("user_patterns.%s.memory", userType), m.Memory); err != nil {
			return err
		}
	}
	if c.UserResources != nil {
		if err := validateNonNegative("user_resources.cpu", c.UserResources.CPU); err != nil {
			return err
		}
		if err := validateNonNegative("user_resources.memory", c.UserResources.Memory); err != nil {
			return err
		}
	}
	if _, err := ParsePodLimits(c.PodResources); err != nil {
		return fmt.Errorf("pod_resources: %w", err)
	}
	return nil
}

// Validate checks the load profile parameters.
func (p LoadProfile) Validate() error {
	if !validPatterns[p.Pattern] {
		return fmt.Errorf("unknown pattern %q; valid: %v", p.Pattern, KnownPatterns())
	}
	if p.MaxUsers < 0 {
		return fmt.Errorf("max_users must be >= 0, got %d", p.MaxUsers)
	}
	if p.InitialUsers < 0 || p.InitialUsers > p.MaxUsers {
		return fmt.Errorf("initial_users must be in [0, max_users=%d], got %d", p.MaxUsers, p.InitialUsers)
	}
	if periodicPatterns[p.Pattern] && !(p.Period > 0) {
		return fmt.Errorf("period must be positive for pattern %q, got %f", p.Pattern, p.Period)
	}
	if p.SpikeProbability < 0 || p.SpikeProbability > 1 {
		return fmt.Errorf("spike_probability must be in [0, 1], got %f", p.SpikeProbability)
	}
	for name, v := range map[string]float64{
		"base_load": p.BaseLoad, "amplitude": p.Amplitude, "spike_multiplier": p.SpikeMultiplier,
		"user_growth_rate": p.UserGrowthRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %f", name, v)
		}
	}
	return nil
}

// Validate checks the replica decision parameters.
func (s ScalingConfig) Validate() error {
	if !(s.CPUThreshold > 0) {
		return fmt.Errorf("cpu_threshold must be positive, got %f", s.CPUThreshold)
	}
	if !(s.MemoryThreshold > 0) {
		return fmt.Errorf("memory_threshold must be positive, got %f", s.MemoryThreshold)
	}
	if s.MinReplicas < 0 {
		return fmt.Errorf("min_replicas must be >= 0, got %d", s.MinReplicas)
	}
	if s.MaxReplicas < 1 || s.MaxReplicas < s.MinReplicas {
		return fmt.Errorf("max_replicas must be >= max(1, min_replicas=%d), got %d", s.MinReplicas, s.MaxReplicas)
	}
	return nil
}

func isKnownUserType(t UserType) bool {
	for _, known := range UserTypes {
		if t == known {
			return true
		}
	}
	return false
}

func validateNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s must be a finite non-negative number, got %f", name, v)
	}
	return nil
}
