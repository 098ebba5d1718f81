package trigger

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArmFires(t *testing.T) {
	s := NewScheduler(nil)
	t.Cleanup(s.Stop)

	var fired atomic.Int32
	s.Arm("pay-1", 10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	// spent timer: nothing left to disarm
	assert.False(t, s.Disarm("pay-1"))
}

func TestDisarmSkipsCallback(t *testing.T) {
	s := NewScheduler(nil)
	t.Cleanup(s.Stop)

	var fired atomic.Int32
	s.Arm("pay-1", 30*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, s.Disarm("pay-1"))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestRearmReplacesTimer(t *testing.T) {
	s := NewScheduler(nil)
	t.Cleanup(s.Stop)

	var first, second atomic.Int32
	s.Arm("pay-1", 20*time.Millisecond, func() { first.Add(1) })
	s.Arm("pay-1", 20*time.Millisecond, func() { second.Add(1) })

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "replaced timer never fires")
}

func TestIndependentKeys(t *testing.T) {
	s := NewScheduler(nil)
	t.Cleanup(s.Stop)

	var fired atomic.Int32
	s.Arm("pay-1", 15*time.Millisecond, func() { fired.Add(1) })
	s.Arm("pay-2", 15*time.Millisecond, func() { fired.Add(1) })
	assert.True(t, s.Disarm("pay-1"))

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestStopDisarmsEverything(t *testing.T) {
	s := NewScheduler(nil)

	var fired atomic.Int32
	s.Arm("pay-1", 20*time.Millisecond, func() { fired.Add(1) })
	s.Arm("pay-2", 20*time.Millisecond, func() { fired.Add(1) })
	s.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// arming after stop is rejected
	s.Arm("pay-3", time.Millisecond, func() { fired.Add(1) })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
