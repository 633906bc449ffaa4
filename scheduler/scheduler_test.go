package scheduler

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pkd-core/core"
)

func TestNextOccurrence_LaterToday(t *testing.T) {
	s := &Scheduler{hour: 15, minute: 30}
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	next := s.nextOccurrence(now)
	assert.Equal(t, time.Date(2026, 7, 29, 15, 30, 0, 0, time.UTC), next)
}

func TestNextOccurrence_AlreadyPassedToday(t *testing.T) {
	s := &Scheduler{hour: 8, minute: 0}
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	next := s.nextOccurrence(now)
	assert.Equal(t, time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC), next)
}

func TestNextOccurrence_ExactlyNow(t *testing.T) {
	s := &Scheduler{hour: 10, minute: 0}
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	next := s.nextOccurrence(now)
	assert.Equal(t, time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC), next)
}

func TestTriggerQueue_PushPop(t *testing.T) {
	dir, err := os.MkdirTemp("", "trigger-queue-")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	q, err := OpenTriggerQueue(dir)
	require.NoError(t, err)
	defer q.Close()

	_, ok, err := q.Pop()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, q.Push(Trigger{Source: core.TriggerManual, Reason: "operator request"}))

	trig, ok, err := q.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.TriggerManual, trig.Source)
	assert.Equal(t, "operator request", trig.Reason)

	_, ok, err = q.Pop()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestScheduler_ManualTriggerBypassesDailyGuard(t *testing.T) {
	dir, err := os.MkdirTemp("", "trigger-queue-")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	q, err := OpenTriggerQueue(dir)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push(Trigger{Source: core.TriggerManual, Reason: "test"}))

	fc := clock.NewFake()
	fc.Set(time.Date(2026, 7, 29, 1, 0, 0, 0, time.UTC))

	var mu sync.Mutex
	var calls []core.TriggerSource
	tick := func(ctx context.Context, forced bool, source core.TriggerSource) {
		mu.Lock()
		calls = append(calls, source)
		mu.Unlock()
	}

	s := New(23, 59, tick, q, fc, nil)
	s.Start()
	defer s.Stop()

	fc.Add(31 * time.Second)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, core.TriggerManual, calls[0])
	mu.Unlock()
}

func TestScheduler_StopWaitsForWorker(t *testing.T) {
	fc := clock.NewFake()
	fc.Set(time.Date(2026, 7, 29, 1, 0, 0, 0, time.UTC))

	tick := func(ctx context.Context, forced bool, source core.TriggerSource) {}

	s := New(12, 0, tick, nil, fc, nil)
	s.Start()
	doneCh := s.doneCh
	s.Stop()

	assert.False(t, s.running)
	select {
	case <-doneCh:
	default:
		t.Fatal("worker still running after Stop returned")
	}
}
