package application

import (
	"context"
	"errors"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
	"github.com/stakewatch/cardano-rewards-service/pkg/metrics"
)

// EpochSyncer maintains the canonical, gapless sequence of epoch boundary
// records. Epochs are created strictly in ascending order and never mutated.
type EpochSyncer struct {
	source domain.LedgerSource
	epochs domain.EpochRepository
	cfg    *config.Sync
	logger *logger.Logger
}

func NewEpochSyncer(source domain.LedgerSource, epochs domain.EpochRepository, cfg *config.Sync, log *logger.Logger) *EpochSyncer {
	return &EpochSyncer{
		source: source,
		epochs: epochs,
		cfg:    cfg,
		logger: log,
	}
}

// Sync reconciles the local epoch sequence with the upstream latest epoch and
// returns the canonical target epoch for this pass. Returns nil when upstream
// is unreachable; the caller aborts the pass and retries on the next run.
func (s *EpochSyncer) Sync(ctx context.Context) *domain.Epoch {
	latest, err := s.source.GetLatestEpoch(ctx)
	if err != nil {
		s.logger.Errorw("Failed to fetch latest epoch", "error", err)
		metrics.SyncPassErrors.Inc()
		return nil
	}

	stored, err := s.epochs.FindLatest(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Errorw("Failed to read stored latest epoch", "error", err)
		return nil
	}

	if stored != nil && stored.Number == latest.Number {
		metrics.UpdateLastSyncedEpoch(stored.Number)
		return stored
	}

	// Backfill every epoch between the stored latest (or the historical
	// floor) and the new upstream latest, ascending.
	from := s.cfg.FloorEpoch
	if stored != nil {
		from = stored.Number + 1
	}

	missing := int(latest.Number - from)
	if missing > 0 {
		history, err := fetchPagesAscending(ctx, missing, s.cfg.EpochPageSize,
			func(ctx context.Context, page, limit int) ([]domain.EpochInfo, error) {
				return s.source.GetEpochHistory(ctx, latest.Number, page, limit)
			})
		if err != nil {
			s.logger.Errorw("Failed to fetch epoch history", "error", err, "before", latest.Number)
			metrics.SyncPassErrors.Inc()
			return nil
		}

		for _, info := range history {
			if info.Number < from || info.Number >= latest.Number {
				continue
			}
			if err := s.createEpoch(ctx, info); err != nil {
				return nil
			}
		}
	}

	if err := s.createEpoch(ctx, *latest); err != nil {
		return nil
	}

	s.logger.Infow("Epoch registry synced", "latest", latest.Number, "backfilled", missing)
	metrics.UpdateLastSyncedEpoch(latest.Number)

	return &domain.Epoch{
		Number:    latest.Number,
		StartTime: latest.StartTime,
		EndTime:   latest.EndTime,
	}
}

func (s *EpochSyncer) createEpoch(ctx context.Context, info domain.EpochInfo) error {
	epoch := &domain.Epoch{
		Number:    info.Number,
		StartTime: info.StartTime,
		EndTime:   info.EndTime,
	}

	err := s.epochs.Create(ctx, epoch)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			s.logger.Warnw("Epoch already stored", "epoch", info.Number)
			return nil
		}
		s.logger.Errorw("Failed to store epoch", "error", err, "epoch", info.Number)
		return err
	}

	metrics.EpochsSynced.Inc()
	return nil
}
