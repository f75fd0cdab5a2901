package application

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
	"github.com/stakewatch/cardano-rewards-service/pkg/metrics"
)

// Reviser redistributes multi-owner pool rewards across the pool's
// stakeholders in proportion to their stake.
//
// The chain credits the whole pool reward to the reward account two epochs
// after it is earned. For pools with several pledge owners the operational
// fee is split equally between them and the remainder is split by each
// stakeholder's share of the pool stake at the earning epoch. Revision for
// epoch M therefore needs finalized history rows at M and M+2 for every
// stakeholder, which is why only rows at least three epochs old are visited.
type Reviser struct {
	pools    domain.PoolRepository
	accounts domain.AccountRepository
	logger   *logger.Logger
}

func NewReviser(pools domain.PoolRepository, accounts domain.AccountRepository, log *logger.Logger) *Reviser {
	return &Reviser{
		pools:    pools,
		accounts: accounts,
		logger:   log,
	}
}

// ReviseAll processes every unrevised pool history row old enough for its
// dependent account rows to exist. Rows whose dependencies are still missing
// are left unrevised and retried on the next pass.
func (r *Reviser) ReviseAll(ctx context.Context, targetEpoch int32) error {
	records, err := r.pools.FindUnrevised(ctx, targetEpoch-3)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to list unrevised pool history: %w", err)
	}

	for i := range records {
		if err := r.revise(ctx, &records[i]); err != nil {
			r.logger.Errorw("Failed to revise pool rewards",
				"error", err, "poolID", records[i].PoolID, "epoch", records[i].Epoch)
			metrics.RecordRevision("error")
		}
	}

	return nil
}

func (r *Reviser) revise(ctx context.Context, record *domain.PoolHistory) error {
	if record.CertTxHash == "" {
		// No certificate was in effect when the row was created; there is
		// nothing to distribute against.
		return r.markRevised(ctx, record, "no_cert")
	}

	cert, err := r.pools.FindCert(ctx, record.PoolID, record.CertTxHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.RecordRevision("not_ready")
			return nil
		}
		return fmt.Errorf("failed to load cert %s: %w", record.CertTxHash, err)
	}

	if len(cert.Owners) <= 1 {
		return r.markRevised(ctx, record, "single_owner")
	}

	stakeholders := cert.Stakeholders()

	stakeRows := make(map[string]*domain.AccountHistory, len(stakeholders))
	payoutRows := make(map[string]*domain.AccountHistory, len(stakeholders))
	for _, addr := range stakeholders {
		stakeRow, err := r.findRow(ctx, addr, record.Epoch)
		if err != nil {
			return err
		}
		payoutRow, err := r.findRow(ctx, addr, record.Epoch+rewardLagEpochs)
		if err != nil {
			return err
		}
		if stakeRow == nil || payoutRow == nil {
			// A stakeholder's history has not reached the payout epoch yet.
			metrics.RecordRevision("not_ready")
			return nil
		}
		stakeRows[addr] = stakeRow
		payoutRows[addr] = payoutRow
	}

	var totalStake int64
	for _, row := range stakeRows {
		totalStake += row.Balance
	}

	rewardRow := payoutRows[cert.RewardAccount]
	netRewards := rewardRow.Rewards - record.Fees
	if netRewards < 0 {
		r.logger.Warnw("Pool fees exceed credited rewards, distributing zero",
			"poolID", record.PoolID, "epoch", record.Epoch,
			"rewards", rewardRow.Rewards, "fees", record.Fees)
		netRewards = 0
	}

	// Operational fee split equally among pledge owners; floor division
	// leaves any remainder undistributed.
	opShare := record.Fees / int64(len(cert.Owners))

	for _, addr := range stakeholders {
		stakeRow := stakeRows[addr]
		payoutRow := payoutRows[addr]

		var share float64
		if totalStake > 0 {
			share = float64(stakeRow.Balance) / float64(totalStake)
		}

		payoutRow.RevisedRewards = int64(math.Floor(share * float64(netRewards)))
		payoutRow.StakeShare = share
		payoutRow.Owner = true
		if cert.HasOwner(addr) {
			payoutRow.OpRewards = opShare
		}

		if err := r.accounts.SaveHistory(ctx, payoutRow); err != nil {
			return fmt.Errorf("failed to save revised row for %s: %w", addr, err)
		}

		if !stakeRow.Owner {
			stakeRow.Owner = true
			if err := r.accounts.SaveHistory(ctx, stakeRow); err != nil {
				return fmt.Errorf("failed to flag owner row for %s: %w", addr, err)
			}
		}
	}

	return r.markRevised(ctx, record, "revised")
}

func (r *Reviser) findRow(ctx context.Context, stakeAddress string, epoch int32) (*domain.AccountHistory, error) {
	row, err := r.accounts.FindHistory(ctx, stakeAddress, epoch)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load history for %s at epoch %d: %w", stakeAddress, epoch, err)
	}
	return row, nil
}

func (r *Reviser) markRevised(ctx context.Context, record *domain.PoolHistory, status string) error {
	record.RewardsRevised = true
	if err := r.pools.SaveHistory(ctx, record); err != nil {
		return fmt.Errorf("failed to mark pool history revised: %w", err)
	}
	metrics.RecordRevision(status)
	return nil
}
