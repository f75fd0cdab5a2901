package domain

import (
	"context"
	"time"
)

// Upstream feed records, decoupled from any particular indexer's wire format.

type EpochInfo struct {
	Number    int32
	StartTime time.Time
	EndTime   time.Time
}

type AccountInfo struct {
	StakeAddress string
	PoolID       string
	RewardsSum   int64
	Withdrawable int64
	Active       bool
}

type StakeHistoryEntry struct {
	Epoch  int32
	Amount int64
	PoolID string
}

// Reward feed entry types as reported upstream.
const (
	RewardTypeLeader = "leader"
	RewardTypeMember = "member"
	RewardTypeRefund = "pool_deposit_refund"
)

type RewardHistoryEntry struct {
	Epoch   int32
	Rewards int64
	PoolID  string
	Type    string
}

type WithdrawalEntry struct {
	TxHash    string
	Block     int64
	BlockTime time.Time
	Amount    int64
}

type MIREntry struct {
	TxHash      string
	BlockHeight int64
	TxIndex     int32
	BlockTime   time.Time
	Amount      int64
}

type PoolInfo struct {
	ID             string
	Name           string
	Ticker         string
	Active         bool
	LiveStake      int64
	LiveDelegators int64
	DeclaredPledge int64
}

type PoolCertEntry struct {
	TxHash        string
	Epoch         int32
	Active        bool
	Margin        float64
	FixedFee      int64
	RewardAccount string
	Owners        []string
	Block         int64
}

type PoolHistoryEntry struct {
	Epoch       int32
	Rewards     int64
	Fees        int64
	Blocks      int32
	ActiveStake int64
}

type MemberPool struct {
	ID   string
	Name string
}

// LedgerSource is the upstream blockchain indexer. Implementations return
// ErrUpstreamUnavailable for transient failures and ErrNotFound for missing
// entities; paginated feeds return newest entries on the lowest page.
type LedgerSource interface {
	GetLatestEpoch(ctx context.Context) (*EpochInfo, error)
	GetEpochHistory(ctx context.Context, beforeEpoch int32, page, limit int) ([]EpochInfo, error)

	GetAccountInfo(ctx context.Context, stakeAddress string) (*AccountInfo, error)
	GetAccountStakeHistory(ctx context.Context, stakeAddress string, page, limit int) ([]StakeHistoryEntry, error)
	GetAccountRewardsHistory(ctx context.Context, stakeAddress string, page, limit int) ([]RewardHistoryEntry, error)
	GetAllAccountWithdrawals(ctx context.Context, stakeAddress, sinceTxHash string) ([]WithdrawalEntry, error)
	GetAllAccountMIRs(ctx context.Context, stakeAddress, sinceTxHash string) ([]MIREntry, error)

	GetPoolInfo(ctx context.Context, poolID string) (*PoolInfo, error)
	GetLastPoolCert(ctx context.Context, poolID string) (*PoolCertEntry, error)
	GetAllPoolCerts(ctx context.Context, poolID, sinceTxHash string) ([]PoolCertEntry, error)
	GetPoolHistory(ctx context.Context, poolID string, page, limit int) ([]PoolHistoryEntry, error)
}

// RosterSource lists the pools considered members for loyalty purposes.
type RosterSource interface {
	GetMemberPools(ctx context.Context) ([]MemberPool, error)
}

// PriceSource provides the current ADA spot price in the quote currency.
type PriceSource interface {
	GetSpotPrice(ctx context.Context, currency string) (float64, error)
}
