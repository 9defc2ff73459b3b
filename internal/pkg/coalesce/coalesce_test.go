package coalesce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	assert.True(t, d.Pending())

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_Cancel(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { runs.Add(1) })
	d.Trigger()
	d.Cancel()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

func TestThrottle_FirstTriggerRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	th := NewThrottle(100*time.Millisecond, func() { runs.Add(1) })
	th.Trigger()
	assert.Equal(t, int32(1), runs.Load())
}

func TestThrottle_BurstRunsAtMostTwice(t *testing.T) {
	var runs atomic.Int32
	th := NewThrottle(100*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 10; i++ {
		th.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int32(1), runs.Load(), "only the first trigger runs inline")

	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())
}

func TestThrottle_SpacedTriggersRunEachTime(t *testing.T) {
	var runs atomic.Int32
	th := NewThrottle(10*time.Millisecond, func() { runs.Add(1) })
	base := time.Now()
	th.now = func() time.Time { return base }
	th.Trigger()
	th.now = func() time.Time { return base.Add(20 * time.Millisecond) }
	th.Trigger()
	th.now = func() time.Time { return base.Add(40 * time.Millisecond) }
	th.Trigger()
	assert.Equal(t, int32(3), runs.Load())
}
