package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBatchSize bounds how many wallets are read per tick
const DefaultBatchSize = 100

// BalanceSyncer refreshes cached wallet balances from the chain
type BalanceSyncer interface {
	SyncBalances(ctx context.Context, limit int) (int, error)
}

// BalanceSyncJob periodically refreshes the cached USDC balance of users who
// approved spending, so eligibility checks start from a recent reading.
type BalanceSyncJob struct {
	syncer    BalanceSyncer
	batchSize int
}

func NewBalanceSyncJob(syncer BalanceSyncer, batchSize int) *BalanceSyncJob {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BalanceSyncJob{
		syncer:    syncer,
		batchSize: batchSize,
	}
}

// Start runs a sync immediately and then every interval until ctx is done
func (j *BalanceSyncJob) Start(ctx context.Context, interval time.Duration) {
	go func() {
		j.RunOnce(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Balance sync job stopped")
				return
			case <-ticker.C:
				j.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single sync pass
func (j *BalanceSyncJob) RunOnce(ctx context.Context) {
	start := time.Now()
	updated, err := j.syncer.SyncBalances(ctx, j.batchSize)
	if err != nil {
		log.Error().Err(err).Int("updated", updated).Msg("Balance sync failed")
		return
	}
	log.Debug().
		Int("updated", updated).
		Dur("took", time.Since(start)).
		Msg("Balance sync completed")
}
