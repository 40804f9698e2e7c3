package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTimers_Fires(t *testing.T) {
	mt := NewMatchTimers()
	var fired atomic.Int32
	mt.Start("m1", 10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)

	// Fire-once: nothing further happens.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestMatchTimers_CancelPreventsFiring(t *testing.T) {
	mt := NewMatchTimers()
	var fired atomic.Int32
	mt.Start("m1", 20*time.Millisecond, func() { fired.Add(1) })
	mt.Cancel("m1")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestMatchTimers_CancelIsIdempotent(t *testing.T) {
	mt := NewMatchTimers()
	mt.Cancel("never-started")
	mt.Start("m1", time.Hour, func() {})
	mt.Cancel("m1")
	mt.Cancel("m1")
}

func TestMatchTimers_RestartReplacesPrevious(t *testing.T) {
	mt := NewMatchTimers()
	var first, second atomic.Int32
	mt.Start("m1", 20*time.Millisecond, func() { first.Add(1) })
	mt.Start("m1", 20*time.Millisecond, func() { second.Add(1) })

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "replaced timer must not fire")
}

func TestMatchTimers_IndependentIDs(t *testing.T) {
	mt := NewMatchTimers()
	var fired atomic.Int32
	mt.Start("m1", 10*time.Millisecond, func() { fired.Add(1) })
	mt.Start("m2", 10*time.Millisecond, func() { fired.Add(1) })
	mt.Cancel("m1")

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}
