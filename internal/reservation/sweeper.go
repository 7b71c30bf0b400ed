package reservation

import (
	"context"
	"time"

	"github.com/commercefull/stockledger/pkg/logger"
)

const sweepBatchSize = 200

// Sweeper periodically releases expired reservations. It blocks only on the
// per-aggregate ledger locks, never on foreground traffic, and each release
// is atomic per reservation line so cancellation mid-sweep leaves nothing
// half-released.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
}

// NewSweeper creates an expiry sweeper
func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{manager: manager, interval: interval}
}

// Run sweeps until ctx is cancelled. Blocks; call from its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	logger.Logger.Info().
		Dur("interval", s.interval).
		Msg("Reservation expiry sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Logger.Info().Msg("Reservation expiry sweeper stopped")
			return
		case <-ticker.C:
			swept, err := s.manager.SweepExpired(ctx, time.Now(), sweepBatchSize)
			if err != nil {
				logger.Error(ctx).Err(err).Msg("Expiry sweep failed")
				continue
			}
			if swept > 0 {
				logger.Info(ctx).Int("expired", swept).Msg("Expiry sweep released reservations")
			}
		}
	}
}
