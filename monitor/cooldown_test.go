package monitor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AnhTuIT04/SmartHomeServer/types"
)

func TestCooldownAdmitsFirstFire(t *testing.T) {
	g := NewCooldownGate(60 * time.Second)
	now := time.Now()

	assert.True(t, g.Admit("s1", types.MetricTemperature, now))
	assert.False(t, g.Admit("s1", types.MetricTemperature, now.Add(5*time.Second)))
	assert.True(t, g.Admit("s1", types.MetricTemperature, now.Add(60*time.Second)))
}

func TestCooldownMetricsIndependent(t *testing.T) {
	g := NewCooldownGate(60 * time.Second)
	now := time.Now()

	assert.True(t, g.Admit("s1", types.MetricTemperature, now))
	assert.True(t, g.Admit("s1", types.MetricHumidity, now))
	assert.True(t, g.Admit("s2", types.MetricTemperature, now))
}

func TestCooldownZeroWindowDisables(t *testing.T) {
	g := NewCooldownGate(0)
	now := time.Now()

	for i := 0; i < 10; i++ {
		assert.True(t, g.Admit("s1", types.MetricTemperature, now))
	}
}

func TestCooldownDenialDoesNotExtendWindow(t *testing.T) {
	g := NewCooldownGate(60 * time.Second)
	now := time.Now()

	assert.True(t, g.Admit("s1", types.MetricLight, now))
	// Denied attempts must not push lastFiredAt forward.
	assert.False(t, g.Admit("s1", types.MetricLight, now.Add(30*time.Second)))
	assert.False(t, g.Admit("s1", types.MetricLight, now.Add(59*time.Second)))
	assert.True(t, g.Admit("s1", types.MetricLight, now.Add(61*time.Second)))
}

func TestCooldownReleaseSensor(t *testing.T) {
	g := NewCooldownGate(time.Hour)
	now := time.Now()

	assert.True(t, g.Admit("s1", types.MetricTemperature, now))
	assert.True(t, g.Admit("s2", types.MetricTemperature, now))

	g.ReleaseSensor("s1")

	// A rewatched sensor starts clean; unrelated sensors keep their state.
	assert.True(t, g.Admit("s1", types.MetricTemperature, now.Add(time.Second)))
	assert.False(t, g.Admit("s2", types.MetricTemperature, now.Add(time.Second)))
}

func TestCooldownConcurrentAdmissionExactlyOne(t *testing.T) {
	g := NewCooldownGate(60 * time.Second)
	now := time.Now()

	const callers = 32
	var admitted atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Admit("s1", types.MetricHumidity, now) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, admitted.Load(), "exactly one concurrent caller may be admitted")
}
