package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
	"github.com/stakewatch/cardano-rewards-service/pkg/metrics"
)

// IntegrityChecker detects accounts whose history violates a non-negativity
// invariant and rebuilds them from scratch. Negative balances or rewards can
// only come from an upstream data gap that a previous pass baked into the
// recurrence, so the whole derived state is purged and resynced rather than
// patched in place.
type IntegrityChecker struct {
	epochs        domain.EpochRepository
	pools         domain.PoolRepository
	accounts      domain.AccountRepository
	accountSyncer *AccountSyncer
	historySyncer *HistorySyncer
	logger        *logger.Logger
}

func NewIntegrityChecker(
	epochs domain.EpochRepository,
	pools domain.PoolRepository,
	accounts domain.AccountRepository,
	accountSyncer *AccountSyncer,
	historySyncer *HistorySyncer,
	log *logger.Logger,
) *IntegrityChecker {
	return &IntegrityChecker{
		epochs:        epochs,
		pools:         pools,
		accounts:      accounts,
		accountSyncer: accountSyncer,
		historySyncer: historySyncer,
		logger:        log,
	}
}

// Run purges and resyncs every corrupted account. A failure on one account
// is logged and does not block repair of the others.
func (c *IntegrityChecker) Run(ctx context.Context) error {
	addresses, err := c.accounts.FindCorrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan for corrupted accounts: %w", err)
	}

	if len(addresses) == 0 {
		return nil
	}

	c.logger.Warnw("Corrupted account history detected", "count", len(addresses))

	for _, address := range addresses {
		if err := c.repair(ctx, address); err != nil {
			c.logger.Errorw("Failed to repair account", "error", err, "stakeAddress", address)
			continue
		}
		metrics.IntegrityRepairs.Inc()
	}

	return nil
}

func (c *IntegrityChecker) repair(ctx context.Context, address string) error {
	account, err := c.accounts.FindByAddress(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	poolIDs, err := c.accounts.HistoryPools(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to list history pools: %w", err)
	}

	if err := c.accounts.DeleteHistory(ctx, address); err != nil {
		return fmt.Errorf("failed to purge history: %w", err)
	}
	if err := c.accounts.DeleteWithdrawals(ctx, address); err != nil {
		return fmt.Errorf("failed to purge withdrawals: %w", err)
	}
	if err := c.accounts.DeleteMIRs(ctx, address); err != nil {
		return fmt.Errorf("failed to purge MIR transactions: %w", err)
	}

	account.Loyalty = 0
	account.MIRLastSync = nil
	account.Epoch = 0
	if err := c.accounts.Save(ctx, account); err != nil {
		return fmt.Errorf("failed to reset account: %w", err)
	}

	// Revised rewards in these pools were computed from purged rows; force
	// the reviser to redo them once the history is rebuilt.
	if len(poolIDs) > 0 {
		if err := c.pools.ResetRevised(ctx, poolIDs); err != nil {
			return fmt.Errorf("failed to reset pool revisions: %w", err)
		}
	}

	lastEpoch, err := c.epochs.FindLatest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// No epoch registry yet; the next scheduled pass resyncs.
			c.logger.Infow("Account purged, resync deferred to next pass", "stakeAddress", address)
			return nil
		}
		return fmt.Errorf("failed to read latest epoch: %w", err)
	}

	if err := c.accountSyncer.SyncWithdrawals(ctx, account); err != nil {
		return fmt.Errorf("failed to resync withdrawals: %w", err)
	}
	if err := c.accountSyncer.SyncMIRs(ctx, account); err != nil {
		return fmt.Errorf("failed to resync MIR transactions: %w", err)
	}
	if err := c.historySyncer.Sync(ctx, account, lastEpoch); err != nil {
		return fmt.Errorf("failed to rebuild history: %w", err)
	}

	c.logger.Infow("Account history rebuilt", "stakeAddress", address, "epoch", account.Epoch)
	return nil
}
