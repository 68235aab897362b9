package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_RunsSubmittedJobs(t *testing.T) {
	pool := New(4, nil)
	defer pool.Stop()

	var count int64
	const jobs = 50
	for i := 0; i < jobs; i++ {
		require.NoError(t, pool.Submit(func() { atomic.AddInt64(&count, 1) }))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) == jobs
	}, time.Second, time.Millisecond)
}

func TestPool_RecoversPanickingJob(t *testing.T) {
	pool := New(2, nil)
	defer pool.Stop()

	require.NoError(t, pool.Submit(func() { panic("boom") }))

	var ran int64
	require.NoError(t, pool.Submit(func() { atomic.AddInt64(&ran, 1) }))

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&ran) == 1
	}, time.Second, time.Millisecond)
}

func TestPool_SubmitAfterStopFails(t *testing.T) {
	pool := New(1, nil)
	pool.Stop()

	err := pool.Submit(func() {})
	require.ErrorIs(t, err, ErrStopped)
}
