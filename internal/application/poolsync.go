package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

// PoolSyncer maintains pool certificates, live pool info and the per-epoch
// pool performance history.
type PoolSyncer struct {
	source domain.LedgerSource
	pools  domain.PoolRepository
	cfg    *config.Sync
	logger *logger.Logger
}

func NewPoolSyncer(source domain.LedgerSource, pools domain.PoolRepository, cfg *config.Sync, log *logger.Logger) *PoolSyncer {
	return &PoolSyncer{
		source: source,
		pools:  pools,
		cfg:    cfg,
		logger: log,
	}
}

// SyncCerts ingests pool certificates newer than the pool's stored watermark.
// Certificates for epochs beyond the target are left for a later pass so the
// watermark never outruns the epoch registry.
func (s *PoolSyncer) SyncCerts(ctx context.Context, pool *domain.Pool, lastEpoch *domain.Epoch) error {
	last, err := s.source.GetLastPoolCert(ctx, pool.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to fetch last cert for pool %s: %w", pool.ID, err)
	}

	if last.TxHash == pool.LastCertTxHash {
		return nil
	}

	certs, err := s.source.GetAllPoolCerts(ctx, pool.ID, pool.LastCertTxHash)
	if err != nil {
		return fmt.Errorf("failed to fetch certs for pool %s: %w", pool.ID, err)
	}

	for _, entry := range certs {
		if entry.Epoch > lastEpoch.Number {
			continue
		}

		cert := &domain.PoolCert{
			PoolID:        pool.ID,
			TxHash:        entry.TxHash,
			Epoch:         entry.Epoch,
			Active:        entry.Active,
			Margin:        entry.Margin,
			FixedFee:      entry.FixedFee,
			RewardAccount: entry.RewardAccount,
			Owners:        entry.Owners,
			Block:         entry.Block,
		}

		if err := s.pools.CreateCert(ctx, cert); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				s.logger.Warnw("Pool cert already stored", "poolID", pool.ID, "txHash", entry.TxHash)
				continue
			}
			return fmt.Errorf("failed to store cert %s: %w", entry.TxHash, err)
		}

		pool.LastCertTxHash = entry.TxHash
		if err := s.pools.Save(ctx, pool); err != nil {
			return fmt.Errorf("failed to advance cert watermark for pool %s: %w", pool.ID, err)
		}
	}

	return nil
}

// SyncInfo refreshes the pool's live metrics from upstream.
func (s *PoolSyncer) SyncInfo(ctx context.Context, pool *domain.Pool, lastEpoch *domain.Epoch) error {
	if pool.Epoch == lastEpoch.Number {
		return nil
	}

	info, err := s.source.GetPoolInfo(ctx, pool.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch info for pool %s: %w", pool.ID, err)
	}

	pool.Name = info.Name
	pool.Ticker = info.Ticker
	pool.Active = info.Active
	pool.LiveStake = info.LiveStake
	pool.LiveDelegators = info.LiveDelegators
	pool.DeclaredPledge = info.DeclaredPledge
	pool.Epoch = lastEpoch.Number

	return s.pools.Save(ctx, pool)
}

// SyncHistory backfills per-epoch pool performance rows up to the last epoch
// with final data. The upstream feed lags one epoch behind the chain tip, and
// a retired pool produces no rows past its retirement.
func (s *PoolSyncer) SyncHistory(ctx context.Context, pool *domain.Pool, lastEpoch *domain.Epoch) error {
	lastHistory, err := s.pools.FindLastHistory(ctx, pool.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to read last pool history: %w", err)
	}

	lastStoredEpoch := s.cfg.FloorEpoch
	if lastHistory != nil {
		lastStoredEpoch = lastHistory.Epoch
	}

	lastActiveEpoch := lastEpoch.Number - 1
	if !pool.Active {
		cert, err := s.pools.FindLastCert(ctx, pool.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to read last cert for pool %s: %w", pool.ID, err)
		}
		if cert != nil && !cert.Active && cert.Epoch-1 < lastActiveEpoch {
			lastActiveEpoch = cert.Epoch - 1
		}
	}

	epochsToSync := int(lastActiveEpoch - lastStoredEpoch)
	if epochsToSync <= 0 {
		return nil
	}

	entries, err := fetchPagesAscending(ctx, epochsToSync, s.cfg.EpochPageSize,
		func(ctx context.Context, page, limit int) ([]domain.PoolHistoryEntry, error) {
			return s.source.GetPoolHistory(ctx, pool.ID, page, limit)
		})
	if err != nil {
		return fmt.Errorf("failed to fetch history for pool %s: %w", pool.ID, err)
	}

	for _, entry := range entries {
		if entry.Epoch <= lastStoredEpoch || entry.Epoch > lastActiveEpoch {
			continue
		}

		certTxHash := ""
		cert, err := s.pools.FindCertAt(ctx, pool.ID, entry.Epoch)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to resolve cert at epoch %d: %w", entry.Epoch, err)
		}
		if cert != nil {
			certTxHash = cert.TxHash
		}

		history := &domain.PoolHistory{
			PoolID:      pool.ID,
			Epoch:       entry.Epoch,
			Rewards:     entry.Rewards,
			Fees:        entry.Fees,
			Blocks:      entry.Blocks,
			ActiveStake: entry.ActiveStake,
			CertTxHash:  certTxHash,
		}

		if err := s.pools.CreateHistory(ctx, history); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				s.logger.Warnw("Pool history row already stored", "poolID", pool.ID, "epoch", entry.Epoch)
				continue
			}
			return fmt.Errorf("failed to store pool history for epoch %d: %w", entry.Epoch, err)
		}
	}

	return nil
}
