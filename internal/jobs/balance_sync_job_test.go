package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	mu     sync.Mutex
	calls  int
	limits []int
}

func (s *countingSyncer) SyncBalances(_ context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.limits = append(s.limits, limit)
	return 0, nil
}

func (s *countingSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestBalanceSyncJobRunsImmediatelyAndOnTick(t *testing.T) {
	syncer := &countingSyncer{}
	job := NewBalanceSyncJob(syncer, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job.Start(ctx, 20*time.Millisecond)

	require.Eventually(t, func() bool { return syncer.count() >= 3 }, time.Second, 5*time.Millisecond)

	syncer.mu.Lock()
	assert.Equal(t, DefaultBatchSize, syncer.limits[0])
	syncer.mu.Unlock()
}

func TestBalanceSyncJobStopsWithContext(t *testing.T) {
	syncer := &countingSyncer{}
	job := NewBalanceSyncJob(syncer, 10)

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx, 10*time.Millisecond)
	require.Eventually(t, func() bool { return syncer.count() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	time.Sleep(30 * time.Millisecond)
	stopped := syncer.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, syncer.count())
}
