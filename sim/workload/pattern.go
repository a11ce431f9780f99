package workload

import (
	"math"

	"github.com/autoscale-sim/autoscale-sim/sim"
	"github.com/sirupsen/logrus"
)

const (
	secondsPerDay    = 86400
	secondsPerHour   = 3600
	secondsPerMinute = 60

	// spikeDutyFraction is the share of each period spent at the spike level.
	spikeDutyFraction = 0.1
	// offHoursFactor scales the daily wave outside business hours.
	offHoursFactor = 0.3
	businessStart  = 8.0
	businessEnd    = 18.0
)

// LoadPattern maps elapsed seconds to an unclamped user count.
type LoadPattern interface {
	// Load returns the raw target for time t. May be negative or exceed
	// MaxUsers; GenerateLoad clamps.
	Load(t float64, rng sim.Rand) float64
}

// LinearPattern grows by UserGrowthRate users per minute from InitialUsers,
// restarting every 24h of t.
type LinearPattern struct {
	initial    float64
	growthRate float64
	maxUsers   float64
}

func (p *LinearPattern) Load(t float64, _ sim.Rand) float64 {
	minutes := math.Mod(t, secondsPerDay) / secondsPerMinute
	return math.Min(p.initial+p.growthRate*minutes, p.maxUsers)
}

// SinePattern oscillates around BaseLoad with the given Amplitude and Period.
type SinePattern struct {
	base, amplitude, period float64
}

func (p *SinePattern) Load(t float64, _ sim.Rand) float64 {
	return p.base + p.amplitude*math.Sin(2*math.Pi*t/p.period)
}

// SpikePattern holds BaseLoad+Amplitude for the first tenth of each period.
type SpikePattern struct {
	base, amplitude, period float64
}

func (p *SpikePattern) Load(t float64, _ sim.Rand) float64 {
	if math.Mod(t, p.period) < p.period*spikeDutyFraction {
		return p.base + p.amplitude
	}
	return p.base
}

// SawtoothPattern ramps from BaseLoad to BaseLoad+Amplitude each period.
type SawtoothPattern struct {
	base, amplitude, period float64
}

func (p *SawtoothPattern) Load(t float64, _ sim.Rand) float64 {
	return p.base + p.amplitude*(math.Mod(t, p.period)/p.period)
}

// SquarePattern alternates between BaseLoad+Amplitude and BaseLoad every half period.
type SquarePattern struct {
	base, amplitude, period float64
}

func (p *SquarePattern) Load(t float64, _ sim.Rand) float64 {
	half := math.Floor(t / (p.period / 2))
	if math.Mod(half, 2) == 0 {
		return p.base + p.amplitude
	}
	return p.base
}

// RandomPattern draws uniformly in BaseLoad ± Amplitude/2 and multiplies by
// SpikeMultiplier with probability SpikeProbability.
type RandomPattern struct {
	base, amplitude  float64
	spikeProbability float64
	spikeMultiplier  float64
}

func (p *RandomPattern) Load(_ float64, rng sim.Rand) float64 {
	v := p.base + (rng.Float64()-0.5)*p.amplitude
	if rng.Float64() < p.spikeProbability {
		v *= p.spikeMultiplier
	}
	return v
}

// DailyPattern follows a 24h sine wave peaking at noon, damped outside
// business hours (08:00 to 18:00 of t's day).
type DailyPattern struct {
	base, amplitude float64
}

func (p *DailyPattern) Load(t float64, _ sim.Rand) float64 {
	hour := math.Mod(t, secondsPerDay) / secondsPerHour
	wave := math.Sin(2 * math.Pi * (hour - 6) / 24)
	factor := offHoursFactor
	if hour >= businessStart && hour <= businessEnd {
		factor = 1
	}
	return p.base + p.amplitude*wave*factor
}

// ConstantPattern always returns BaseLoad.
type ConstantPattern struct {
	base float64
}

func (p *ConstantPattern) Load(_ float64, _ sim.Rand) float64 {
	return p.base
}

// NewLoadPattern creates the LoadPattern for a pattern tag.
// Unrecognized tags, and periodic patterns without a positive period,
// fall back to a constant BaseLoad.
func NewLoadPattern(pattern string, profile sim.LoadProfile) LoadPattern {
	periodic := func() bool {
		if profile.Period > 0 {
			return true
		}
		logrus.Warnf("pattern %q needs a positive period, got %f; using base load", pattern, profile.Period)
		return false
	}
	switch pattern {
	case sim.PatternLinear:
		return &LinearPattern{
			initial:    float64(profile.InitialUsers),
			growthRate: profile.UserGrowthRate,
			maxUsers:   float64(profile.MaxUsers),
		}
	case sim.PatternSine:
		if periodic() {
			return &SinePattern{base: profile.BaseLoad, amplitude: profile.Amplitude, period: profile.Period}
		}
	case sim.PatternSpike:
		if periodic() {
			return &SpikePattern{base: profile.BaseLoad, amplitude: profile.Amplitude, period: profile.Period}
		}
	case sim.PatternSawtooth:
		if periodic() {
			return &SawtoothPattern{base: profile.BaseLoad, amplitude: profile.Amplitude, period: profile.Period}
		}
	case sim.PatternSquare:
		if periodic() {
			return &SquarePattern{base: profile.BaseLoad, amplitude: profile.Amplitude, period: profile.Period}
		}
	case sim.PatternRandom:
		return &RandomPattern{
			base:             profile.BaseLoad,
			amplitude:        profile.Amplitude,
			spikeProbability: profile.SpikeProbability,
			spikeMultiplier:  profile.SpikeMultiplier,
		}
	case sim.PatternDaily:
		return &DailyPattern{base: profile.BaseLoad, amplitude: profile.Amplitude}
	}
	return &ConstantPattern{base: profile.BaseLoad}
}

// GenerateLoad returns the target user count for pattern at t seconds.
//
// The linear result is clamped to [InitialUsers, MaxUsers], every other
// pattern to [0, MaxUsers], and the value is floored. MaxUsers wins when
// InitialUsers exceeds it. Non-finite raw values are replaced by BaseLoad.
// rng is only read by the random pattern and may be nil otherwise.
func GenerateLoad(pattern string, t float64, profile sim.LoadProfile, rng sim.Rand) int {
	raw := NewLoadPattern(pattern, profile).Load(t, rng)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		raw = profile.BaseLoad
	}

	floor := 0.0
	if pattern == sim.PatternLinear {
		floor = float64(profile.InitialUsers)
	}
	ceiling := math.Max(float64(profile.MaxUsers), 0)
	v := math.Min(math.Max(raw, floor), ceiling)
	if math.IsNaN(v) {
		v = 0
	}
	return int(math.Floor(v))
}
