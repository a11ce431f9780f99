package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearConfig() *RuntimeConfig {
	cfg := DefaultRuntimeConfig()
	cfg.DefaultLoadProfile = LoadProfile{
		Pattern:        PatternLinear,
		MaxUsers:       100,
		UserGrowthRate: 6,
		InitialUsers:   4,
	}
	return cfg
}

func TestSimulationContext_Tick_NilConfigIsSnapshot(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	ctx := NewSimulationContext(1, clock)
	ctx.Tick(linearConfig())

	got := ctx.Tick(nil)

	assert.Equal(t, 4, got.Target)
	assert.Len(t, got.Users, 4)
	assert.Zero(t, got.Added)
}

func TestSimulationContext_Tick_LinearMeasuresFromFirstTick(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch.Add(13 * time.Hour))
	ctx := NewSimulationContext(1, clock)
	cfg := linearConfig()

	// GIVEN the first linear tick
	first := ctx.Tick(cfg)
	// THEN the run starts at InitialUsers regardless of wall time
	assert.Equal(t, 4, first.Target)
	assert.Equal(t, 4, first.Added)
	origin, ok := ctx.LinearOrigin()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(13*time.Hour), origin)

	// WHEN five minutes pass
	clock.Advance(5 * time.Minute)
	second := ctx.Tick(cfg)

	// THEN growth is 6 users/minute from the origin
	assert.Equal(t, 34, second.Target)
	assert.Equal(t, 30, second.Added)
	assert.Len(t, second.Users, 34)
}

func TestSimulationContext_Tick_LeavingLinearClearsOrigin(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	ctx := NewSimulationContext(1, clock)
	ctx.Tick(linearConfig())
	clock.Advance(10 * time.Minute)

	sine := DefaultRuntimeConfig()
	ctx.Tick(sine)
	_, ok := ctx.LinearOrigin()
	assert.False(t, ok)

	// WHEN linear resumes later
	clock.Advance(time.Hour)
	got := ctx.Tick(linearConfig())

	// THEN it restarts from its initial users
	assert.Equal(t, 4, got.Target)
	origin, ok := ctx.LinearOrigin()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(70*time.Minute), origin)
}

func TestSimulationContext_Tick_IdempotentAtSameInstant(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	ctx := NewSimulationContext(1, clock)
	cfg := DefaultRuntimeConfig()

	first := ctx.Tick(cfg)
	second := ctx.Tick(cfg)

	assert.Equal(t, first.Target, second.Target)
	assert.Equal(t, first.Users, second.Users)
	assert.Zero(t, second.Added)
	assert.Zero(t, second.Removed)
}

func TestSimulationContext_Tick_SineReadsAbsoluteClock(t *testing.T) {
	// GIVEN a clock a quarter period past a period boundary
	cfg := DefaultRuntimeConfig()
	cfg.DefaultLoadProfile.Period = 400
	clock := clockwork.NewFakeClockAt(time.Unix(400*1000+100, 0))
	ctx := NewSimulationContext(1, clock)

	got := ctx.Tick(cfg)

	// THEN the target is at the sine peak: base + amplitude
	assert.Equal(t, 150, got.Target)
}

func TestSimulationContext_SameSeedSameRun(t *testing.T) {
	run := func() []TickResult {
		clock := clockwork.NewFakeClockAt(epoch)
		ctx := NewSimulationContext(42, clock)
		cfg := DefaultRuntimeConfig()
		cfg.DefaultLoadProfile.Pattern = PatternRandom
		var out []TickResult
		for i := 0; i < 20; i++ {
			out = append(out, ctx.Tick(cfg))
			clock.Advance(5 * time.Second)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestSimulationContext_Reset_ReplaysLikeFresh(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	ctx := NewSimulationContext(7, clock)
	cfg := linearConfig()

	first := ctx.Tick(cfg)
	clock.Advance(time.Minute)
	ctx.Tick(cfg)

	ctx.Reset()
	assert.Empty(t, ctx.Users())
	_, ok := ctx.LinearOrigin()
	assert.False(t, ok)

	again := ctx.Tick(cfg)
	assert.Equal(t, first.Users[0].ID, again.Users[0].ID)
	for i := range first.Users {
		assert.Equal(t, first.Users[i].Type, again.Users[i].Type, "user %d type", i)
	}
}

func TestSimulationContext_Assign_PersistsPodNames(t *testing.T) {
	ctx := NewSimulationContext(1, clockwork.NewFakeClockAt(epoch))
	res := ctx.Tick(linearConfig())

	ctx.Assign(DistributeUsers(res.Users, podNames(2)))

	for _, u := range ctx.Users() {
		assert.NotEmpty(t, u.PodName, u.ID)
	}
}

func TestSimulationContext_IndependentContextsInParallel(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	cfg.DefaultLoadProfile.Pattern = PatternRandom

	var wg sync.WaitGroup
	results := make([][]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clock := clockwork.NewFakeClockAt(epoch)
			ctx := NewSimulationContext(99, clock)
			for j := 0; j < 25; j++ {
				results[i] = append(results[i], ctx.Tick(cfg).Target)
				clock.Advance(time.Second)
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		assert.Equal(t, results[0], results[i], "context %d diverged", i)
	}
}

func TestSimulationContext_IDsAreUnique(t *testing.T) {
	a := NewSimulationContext(1, nil)
	b := NewSimulationContext(1, nil)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotNil(t, a.Clock())
}
