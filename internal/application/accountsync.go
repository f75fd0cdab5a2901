package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

// AccountSyncer refreshes account-level state from upstream: the live account
// summary plus the append-only withdrawal and MIR transaction logs that the
// history computation reads per epoch.
type AccountSyncer struct {
	source     domain.LedgerSource
	epochs     domain.EpochRepository
	pools      domain.PoolRepository
	accounts   domain.AccountRepository
	poolSyncer *PoolSyncer
	clock      clockwork.Clock
	logger     *logger.Logger
}

func NewAccountSyncer(
	source domain.LedgerSource,
	epochs domain.EpochRepository,
	pools domain.PoolRepository,
	accounts domain.AccountRepository,
	poolSyncer *PoolSyncer,
	clock clockwork.Clock,
	log *logger.Logger,
) *AccountSyncer {
	return &AccountSyncer{
		source:     source,
		epochs:     epochs,
		pools:      pools,
		accounts:   accounts,
		poolSyncer: poolSyncer,
		clock:      clock,
		logger:     log,
	}
}

// SyncInfo refreshes the account summary. When the account moved to a pool
// this service has never seen, the pool is registered and fully synced so
// that certificates exist before the account's history is computed.
func (s *AccountSyncer) SyncInfo(ctx context.Context, account *domain.Account, lastEpoch *domain.Epoch) error {
	if account.Epoch == lastEpoch.Number {
		return nil
	}

	info, err := s.source.GetAccountInfo(ctx, account.StakeAddress)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Stake address not yet registered on chain. Benign for stub
			// accounts created from pool certificates.
			s.logger.Debugw("Account not known upstream", "stakeAddress", account.StakeAddress)
			return nil
		}
		return fmt.Errorf("failed to fetch account info: %w", err)
	}

	if info.PoolID != "" && info.PoolID != account.PoolID {
		if err := s.registerPool(ctx, info.PoolID, lastEpoch); err != nil {
			return err
		}
	}

	account.PoolID = info.PoolID
	account.RewardsSum = info.RewardsSum
	account.Withdrawable = info.Withdrawable
	account.Active = info.Active

	return s.accounts.Save(ctx, account)
}

func (s *AccountSyncer) registerPool(ctx context.Context, poolID string, lastEpoch *domain.Epoch) error {
	_, err := s.pools.FindByID(ctx, poolID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to look up pool %s: %w", poolID, err)
	}

	s.logger.Infow("Registering newly delegated pool", "poolID", poolID)

	pool := &domain.Pool{ID: poolID}
	if err := s.pools.Save(ctx, pool); err != nil {
		return fmt.Errorf("failed to register pool %s: %w", poolID, err)
	}

	if err := s.poolSyncer.SyncCerts(ctx, pool, lastEpoch); err != nil {
		return err
	}
	if err := s.poolSyncer.SyncInfo(ctx, pool, lastEpoch); err != nil {
		return err
	}
	return s.poolSyncer.SyncHistory(ctx, pool, lastEpoch)
}

// SyncWithdrawals appends on-chain withdrawals newer than the stored
// watermark. Entries whose block time falls outside every known epoch window
// are dropped with a warning and retried once the epoch registry catches up.
func (s *AccountSyncer) SyncWithdrawals(ctx context.Context, account *domain.Account) error {
	since, err := s.accounts.LastWithdrawalTxHash(ctx, account.StakeAddress)
	if err != nil {
		return fmt.Errorf("failed to read withdrawal watermark: %w", err)
	}

	entries, err := s.source.GetAllAccountWithdrawals(ctx, account.StakeAddress, since)
	if err != nil {
		return fmt.Errorf("failed to fetch withdrawals: %w", err)
	}

	for _, entry := range entries {
		epoch, err := s.epochs.FindOneFromTime(ctx, entry.BlockTime)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warnw("No epoch covers withdrawal block time, dropping",
					"stakeAddress", account.StakeAddress, "txHash", entry.TxHash, "blockTime", entry.BlockTime)
				continue
			}
			return fmt.Errorf("failed to resolve epoch for withdrawal %s: %w", entry.TxHash, err)
		}

		withdrawal := &domain.AccountWithdrawal{
			StakeAddress: account.StakeAddress,
			TxHash:       entry.TxHash,
			Epoch:        epoch.Number,
			Amount:       entry.Amount,
			BlockTime:    entry.BlockTime,
		}

		if err := s.accounts.CreateWithdrawal(ctx, withdrawal); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("failed to store withdrawal %s: %w", entry.TxHash, err)
		}
	}

	return nil
}

// SyncMIRs appends move-instantaneous-reward transactions newer than the
// stored watermark and stamps the account's MIR sync time.
func (s *AccountSyncer) SyncMIRs(ctx context.Context, account *domain.Account) error {
	since, err := s.accounts.LastMIRTxHash(ctx, account.StakeAddress)
	if err != nil {
		return fmt.Errorf("failed to read MIR watermark: %w", err)
	}

	entries, err := s.source.GetAllAccountMIRs(ctx, account.StakeAddress, since)
	if err != nil {
		return fmt.Errorf("failed to fetch MIR transactions: %w", err)
	}

	for _, entry := range entries {
		epoch, err := s.epochs.FindOneFromTime(ctx, entry.BlockTime)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warnw("No epoch covers MIR block time, dropping",
					"stakeAddress", account.StakeAddress, "txHash", entry.TxHash, "blockTime", entry.BlockTime)
				continue
			}
			return fmt.Errorf("failed to resolve epoch for MIR %s: %w", entry.TxHash, err)
		}

		mir := &domain.MIRTransaction{
			StakeAddress: account.StakeAddress,
			TxHash:       entry.TxHash,
			Epoch:        epoch.Number,
			Amount:       entry.Amount,
			BlockTime:    entry.BlockTime,
		}

		if err := s.accounts.CreateMIR(ctx, mir); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("failed to store MIR %s: %w", entry.TxHash, err)
		}
	}

	now := s.clock.Now()
	account.MIRLastSync = &now
	return s.accounts.Save(ctx, account)
}
