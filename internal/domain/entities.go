package domain

import "time"

// All on-chain amounts are lovelace (1 ADA = 1e6 lovelace) held as int64.

// Epoch is one canonical epoch boundary record. Rows are immutable and
// created strictly in ascending order by the epoch registry.
type Epoch struct {
	Number    int32     `json:"number" db:"number"`
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`
}

// Contains reports whether t falls inside the epoch's time window.
func (e *Epoch) Contains(t time.Time) bool {
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}

// Pool is a stake pool's identity and current live metrics. Pools are never
// deleted; history rows keep referencing retired pools.
type Pool struct {
	ID             string    `json:"pool_id" db:"pool_id"`
	Name           string    `json:"name" db:"name"`
	Ticker         string    `json:"ticker" db:"ticker"`
	IsMember       bool      `json:"is_member" db:"is_member"`
	Active         bool      `json:"active" db:"active"`
	LiveStake      int64     `json:"live_stake" db:"live_stake"`
	LiveDelegators int64     `json:"live_delegators" db:"live_delegators"`
	DeclaredPledge int64     `json:"declared_pledge" db:"declared_pledge"`
	LastCertTxHash string    `json:"-" db:"last_cert_tx_hash"`
	Epoch          int32     `json:"epoch" db:"epoch"`
	UpdatedAt      time.Time `json:"-" db:"updated_at"`
}

// PoolCert is one on-chain registration/retirement certificate. Append-only,
// unique per (pool, txHash); the cert with the highest block at or before an
// epoch is the one in effect for that epoch.
type PoolCert struct {
	ID            string   `json:"-" db:"id"`
	PoolID        string   `json:"pool_id" db:"pool_id"`
	TxHash        string   `json:"tx_hash" db:"tx_hash"`
	Epoch         int32    `json:"epoch" db:"epoch"`
	Active        bool     `json:"active" db:"active"`
	Margin        float64  `json:"margin" db:"margin"`
	FixedFee      int64    `json:"fixed_fee" db:"fixed_fee"`
	RewardAccount string   `json:"reward_account" db:"reward_account"`
	Owners        []string `json:"owners" db:"owners"`
	Block         int64    `json:"block" db:"block"`
}

// HasOwner reports whether stakeAddress is listed among the pledge owners.
func (c *PoolCert) HasOwner(stakeAddress string) bool {
	for _, owner := range c.Owners {
		if owner == stakeAddress {
			return true
		}
	}
	return false
}

// Stakeholders returns the pledge owners plus the reward account,
// deduplicated. The reward account counts as a stakeholder even when it is
// not a pledge owner.
func (c *PoolCert) Stakeholders() []string {
	out := make([]string, 0, len(c.Owners)+1)
	seen := make(map[string]bool, len(c.Owners)+1)
	for _, owner := range c.Owners {
		if !seen[owner] {
			seen[owner] = true
			out = append(out, owner)
		}
	}
	if c.RewardAccount != "" && !seen[c.RewardAccount] {
		out = append(out, c.RewardAccount)
	}
	return out
}

// PoolHistory is one pool performance record per (pool, epoch).
// RewardsRevised starts false and flips to true once the multi-owner reviser
// has processed the epoch; the integrity checker may reset it.
type PoolHistory struct {
	PoolID         string `json:"pool_id" db:"pool_id"`
	Epoch          int32  `json:"epoch" db:"epoch"`
	Rewards        int64  `json:"rewards" db:"rewards"`
	Fees           int64  `json:"fees" db:"fees"`
	Blocks         int32  `json:"blocks" db:"blocks"`
	ActiveStake    int64  `json:"active_stake" db:"active_stake"`
	CertTxHash     string `json:"-" db:"cert_tx_hash"`
	RewardsRevised bool   `json:"rewards_revised" db:"rewards_revised"`
}

// Account is one delegator identified by its stake address. Loyalty counts
// consecutive epochs delegated to a member pool.
type Account struct {
	StakeAddress string     `json:"stake_address" db:"stake_address"`
	PoolID       string     `json:"pool_id" db:"pool_id"`
	Epoch        int32      `json:"epoch" db:"epoch"`
	RewardsSum   int64      `json:"rewards_sum" db:"rewards_sum"`
	Withdrawable int64      `json:"withdrawable" db:"withdrawable"`
	Active       bool       `json:"active" db:"active"`
	Loyalty      int32      `json:"loyalty" db:"loyalty"`
	MIRLastSync  *time.Time `json:"-" db:"mir_last_sync"`
	CreatedAt    time.Time  `json:"-" db:"created_at"`
}

// AccountHistory is the central ledger row: exactly one per (account, epoch).
// Balance and Withdrawable are computed incrementally from the immediately
// preceding row, so a single bad row corrupts every later one.
type AccountHistory struct {
	ID             string    `json:"-" db:"id"`
	StakeAddress   string    `json:"stake_address" db:"stake_address"`
	Epoch          int32     `json:"epoch" db:"epoch"`
	ActiveStake    int64     `json:"active_stake" db:"active_stake"`
	Balance        int64     `json:"balance" db:"balance"`
	Rewards        int64     `json:"rewards" db:"rewards"`
	RevisedRewards int64     `json:"revised_rewards" db:"revised_rewards"`
	OpRewards      int64     `json:"op_rewards" db:"op_rewards"`
	MIR            int64     `json:"mir" db:"mir"`
	Refund         int64     `json:"refund" db:"refund"`
	Withdrawable   int64     `json:"withdrawable" db:"withdrawable"`
	Withdrawn      int64     `json:"withdrawn" db:"withdrawn"`
	PoolID         string    `json:"pool_id" db:"pool_id"`
	Owner          bool      `json:"owner" db:"owner"`
	StakeShare     float64   `json:"stake_share" db:"stake_share"`
	CreatedAt      time.Time `json:"-" db:"created_at"`
}

// Corrupted reports whether the row violates a non-negativity invariant.
func (h *AccountHistory) Corrupted() bool {
	return h.Balance < 0 || h.Withdrawable < 0 || h.RevisedRewards < 0 || h.OpRewards < 0
}

// AccountWithdrawal is one on-chain withdrawal event, unique per
// (account, txHash).
type AccountWithdrawal struct {
	ID           string    `json:"-" db:"id"`
	StakeAddress string    `json:"stake_address" db:"stake_address"`
	TxHash       string    `json:"tx_hash" db:"tx_hash"`
	Epoch        int32     `json:"epoch" db:"epoch"`
	Amount       int64     `json:"amount" db:"amount"`
	BlockTime    time.Time `json:"block_time" db:"block_time"`
}

// MIRTransaction is one move-instantaneous-rewards event, unique per
// (account, txHash).
type MIRTransaction struct {
	ID           string    `json:"-" db:"id"`
	StakeAddress string    `json:"stake_address" db:"stake_address"`
	TxHash       string    `json:"tx_hash" db:"tx_hash"`
	Epoch        int32     `json:"epoch" db:"epoch"`
	Amount       int64     `json:"amount" db:"amount"`
	BlockTime    time.Time `json:"block_time" db:"block_time"`
}

// SpotPrice is one ADA spot price observation per day per quote currency.
type SpotPrice struct {
	Day      time.Time `json:"day" db:"day"`
	Currency string    `json:"currency" db:"currency"`
	Price    float64   `json:"price" db:"price"`
}
