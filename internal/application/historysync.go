package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
	"github.com/stakewatch/cardano-rewards-service/pkg/metrics"
)

// Rewards reach the ledger two epochs after they are earned.
const rewardLagEpochs = 2

// HistorySyncer computes and persists exactly one AccountHistory row per
// (account, epoch) for all epochs between the account's last stored history
// row and the canonical target epoch.
//
// Rows are written strictly in ascending epoch order because each row's
// balance and withdrawable derive from the immediately preceding row.
// Committed rows are never rolled back: a failure only halts forward progress
// for the account until the next scheduled run.
type HistorySyncer struct {
	source   domain.LedgerSource
	epochs   domain.EpochRepository
	pools    domain.PoolRepository
	accounts domain.AccountRepository
	cfg      *config.Sync
	logger   *logger.Logger
}

func NewHistorySyncer(
	source domain.LedgerSource,
	epochs domain.EpochRepository,
	pools domain.PoolRepository,
	accounts domain.AccountRepository,
	cfg *config.Sync,
	log *logger.Logger,
) *HistorySyncer {
	return &HistorySyncer{
		source:   source,
		epochs:   epochs,
		pools:    pools,
		accounts: accounts,
		cfg:      cfg,
		logger:   log,
	}
}

// Sync brings account's history forward to lastEpoch.
func (s *HistorySyncer) Sync(ctx context.Context, account *domain.Account, lastEpoch *domain.Epoch) error {
	if account.StakeAddress == "" {
		return fmt.Errorf("account has no stake address")
	}

	if account.Epoch == lastEpoch.Number {
		return nil
	}

	lastHistory, err := s.accounts.FindLastHistory(ctx, account.StakeAddress)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to read last history: %w", err)
	}

	lastStoredEpoch := s.cfg.FloorEpoch
	if lastHistory != nil {
		lastStoredEpoch = lastHistory.Epoch
	}

	epochsToSync := int(lastEpoch.Number - lastStoredEpoch)
	if epochsToSync <= 0 {
		account.Epoch = lastEpoch.Number
		return s.accounts.Save(ctx, account)
	}

	stakeEntries, err := fetchPagesAscending(ctx, epochsToSync, s.cfg.StakePageSize,
		func(ctx context.Context, page, limit int) ([]domain.StakeHistoryEntry, error) {
			return s.source.GetAccountStakeHistory(ctx, account.StakeAddress, page, limit)
		})
	if err != nil {
		s.logger.Errorw("Failed to fetch stake history", "error", err, "stakeAddress", account.StakeAddress)
		metrics.SyncPassErrors.Inc()
		return err
	}

	// The rewards feed is fetched at double the stake page size: leader,
	// member and refund entries can share one epoch, and under-fetching
	// here silently drops rewards at page boundaries.
	rewardEntries, err := fetchPagesAscending(ctx, epochsToSync*2, s.cfg.StakePageSize*2,
		func(ctx context.Context, page, limit int) ([]domain.RewardHistoryEntry, error) {
			return s.source.GetAccountRewardsHistory(ctx, account.StakeAddress, page, limit)
		})
	if err != nil {
		s.logger.Errorw("Failed to fetch rewards history", "error", err, "stakeAddress", account.StakeAddress)
		metrics.SyncPassErrors.Inc()
		return err
	}

	prev := lastHistory
	skipped := false

	for _, entry := range stakeEntries {
		if lastHistory != nil && entry.Epoch <= lastHistory.Epoch {
			continue
		}
		// The in-progress epoch is not final; never sync past the target.
		if entry.Epoch > lastEpoch.Number {
			continue
		}

		epoch, err := s.epochs.FindByNumber(ctx, entry.Epoch)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warnw("Epoch not found in registry, skipping history row",
					"stakeAddress", account.StakeAddress, "epoch", entry.Epoch)
				metrics.RecordHistoryRow("epoch_missing")
				skipped = true
				continue
			}
			return fmt.Errorf("failed to resolve epoch %d: %w", entry.Epoch, err)
		}

		existing, err := s.accounts.FindHistory(ctx, account.StakeAddress, epoch.Number)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to check existing history: %w", err)
		}
		if existing != nil {
			s.logger.Warnw("History row already exists, skipping",
				"stakeAddress", account.StakeAddress, "epoch", epoch.Number)
			metrics.RecordHistoryRow("duplicate")
			prev = existing
			continue
		}

		history, err := s.buildHistory(ctx, account, epoch.Number, entry, rewardEntries, prev)
		if err != nil {
			return err
		}

		if err := s.accounts.CreateHistory(ctx, history); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				s.logger.Warnw("Duplicate history insert prevented by store",
					"stakeAddress", account.StakeAddress, "epoch", epoch.Number)
				metrics.RecordHistoryRow("duplicate")
				continue
			}
			return fmt.Errorf("failed to persist history row: %w", err)
		}
		metrics.RecordHistoryRow("created")

		if err := s.accounts.Save(ctx, account); err != nil {
			return fmt.Errorf("failed to persist account: %w", err)
		}

		prev = history
	}

	// Advance the idempotence watermark only when nothing was skipped, so
	// the next run retries epochs dropped on a registry miss.
	if !skipped {
		account.Epoch = lastEpoch.Number
		return s.accounts.Save(ctx, account)
	}

	return nil
}

// buildHistory computes one ledger row. Loyalty and owner flags are side
// effects on the account and the row respectively.
func (s *HistorySyncer) buildHistory(
	ctx context.Context,
	account *domain.Account,
	epoch int32,
	entry domain.StakeHistoryEntry,
	rewardEntries []domain.RewardHistoryEntry,
	prev *domain.AccountHistory,
) (*domain.AccountHistory, error) {
	rewards := sumRewards(rewardEntries, epoch-rewardLagEpochs)
	refunds := sumRefunds(rewardEntries, epoch)

	withdrawals, err := s.accounts.FindWithdrawals(ctx, account.StakeAddress, epoch)
	if err != nil {
		return nil, fmt.Errorf("failed to read withdrawals: %w", err)
	}
	var totalWithdraw int64
	for _, w := range withdrawals {
		totalWithdraw += w.Amount
	}

	mirs, err := s.accounts.FindMIRs(ctx, account.StakeAddress, epoch)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIR transactions: %w", err)
	}
	var totalMIR int64
	for _, m := range mirs {
		totalMIR += m.Amount
	}

	var prevWithdrawable, prevWithdrawn int64
	if prev != nil {
		prevWithdrawable = prev.Withdrawable
		prevWithdrawn = prev.Withdrawn
	}

	withdrawable := prevWithdrawable - prevWithdrawn + rewards + totalMIR + refunds
	if withdrawable-totalWithdraw >= 0 {
		withdrawable -= totalWithdraw
	} else {
		// Upstream data gaps can make the account look over-withdrawn.
		// Fall back to the withdrawn amount instead of going negative and
		// count the occurrence so the gap is visible to operators.
		s.logger.Warnw("Withdrawable clamp applied",
			"stakeAddress", account.StakeAddress, "epoch", epoch,
			"computed", withdrawable-totalWithdraw, "withdrawn", totalWithdraw)
		metrics.WithdrawableClampTotal.Inc()
		withdrawable = totalWithdraw
	}

	var balance int64
	if entry.Amount != 0 {
		balance = entry.Amount - (prevWithdrawable - prevWithdrawn)
	}

	// Loyalty counts consecutive epochs delegated to a member pool.
	pool, err := s.pools.FindByID(ctx, entry.PoolID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve pool %s: %w", entry.PoolID, err)
	}
	if pool != nil && pool.IsMember {
		account.Loyalty++
	} else {
		account.Loyalty = 0
	}
	account.PoolID = entry.PoolID

	owner := false
	cert, err := s.pools.FindCertAt(ctx, entry.PoolID, epoch)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve cert for pool %s: %w", entry.PoolID, err)
	}
	if cert != nil {
		owner = cert.HasOwner(account.StakeAddress)
	}

	return &domain.AccountHistory{
		StakeAddress: account.StakeAddress,
		Epoch:        epoch,
		ActiveStake:  entry.Amount,
		Balance:      balance,
		Rewards:      rewards,
		MIR:          totalMIR,
		Refund:       refunds,
		Withdrawable: withdrawable,
		Withdrawn:    totalWithdraw,
		PoolID:       entry.PoolID,
		Owner:        owner,
	}, nil
}

// sumRewards accumulates leader and member rewards recorded at epoch.
// Empty input yields zero.
func sumRewards(entries []domain.RewardHistoryEntry, epoch int32) int64 {
	var total int64
	for _, e := range entries {
		if e.Epoch != epoch {
			continue
		}
		if e.Type == domain.RewardTypeLeader || e.Type == domain.RewardTypeMember {
			total += e.Rewards
		}
	}
	return total
}

// sumRefunds accumulates pool deposit refunds recorded at epoch.
func sumRefunds(entries []domain.RewardHistoryEntry, epoch int32) int64 {
	var total int64
	for _, e := range entries {
		if e.Epoch == epoch && e.Type == domain.RewardTypeRefund {
			total += e.Rewards
		}
	}
	return total
}
