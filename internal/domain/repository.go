package domain

import (
	"context"
	"time"
)

// Store interfaces. Natural and composite keys carry unique indexes in the
// backing store; Create methods return ErrAlreadyExists on violation and
// Find methods return ErrNotFound on a miss.

type EpochRepository interface {
	Create(ctx context.Context, epoch *Epoch) error
	FindByNumber(ctx context.Context, number int32) (*Epoch, error)
	FindLatest(ctx context.Context) (*Epoch, error)
	// FindOneFromTime returns the epoch whose [start, end] window contains t.
	FindOneFromTime(ctx context.Context, t time.Time) (*Epoch, error)
	// FindOneStartAfter returns the first epoch with startTime >= t.
	FindOneStartAfter(ctx context.Context, t time.Time) (*Epoch, error)
}

type PoolRepository interface {
	Save(ctx context.Context, pool *Pool) error
	FindByID(ctx context.Context, poolID string) (*Pool, error)
	FindAll(ctx context.Context) ([]Pool, error)
	FindMembers(ctx context.Context) ([]Pool, error)

	// CreateCert inserts the certificate and stub accounts for its owners
	// and reward account in a single transaction.
	CreateCert(ctx context.Context, cert *PoolCert) error
	FindCert(ctx context.Context, poolID, txHash string) (*PoolCert, error)
	// FindLastCert returns the cert with the highest block for the pool.
	FindLastCert(ctx context.Context, poolID string) (*PoolCert, error)
	// FindCertAt returns the cert in effect at untilEpoch: the one with the
	// highest block among certs with epoch <= untilEpoch.
	FindCertAt(ctx context.Context, poolID string, untilEpoch int32) (*PoolCert, error)

	CreateHistory(ctx context.Context, history *PoolHistory) error
	SaveHistory(ctx context.Context, history *PoolHistory) error
	FindHistory(ctx context.Context, poolID string, epoch int32) (*PoolHistory, error)
	FindLastHistory(ctx context.Context, poolID string) (*PoolHistory, error)
	FindAllHistory(ctx context.Context, poolID string) ([]PoolHistory, error)
	// FindUnrevised returns history rows with rewardsRevised=false and
	// epoch <= maxEpoch, oldest first.
	FindUnrevised(ctx context.Context, maxEpoch int32) ([]PoolHistory, error)
	ResetRevised(ctx context.Context, poolIDs []string) error
}

type AccountRepository interface {
	Save(ctx context.Context, account *Account) error
	FindByAddress(ctx context.Context, stakeAddress string) (*Account, error)
	FindAll(ctx context.Context) ([]Account, error)
	// FindCorrupted returns the stake addresses of accounts owning at least
	// one history row that violates a non-negativity invariant.
	FindCorrupted(ctx context.Context) ([]string, error)

	CreateHistory(ctx context.Context, history *AccountHistory) error
	SaveHistory(ctx context.Context, history *AccountHistory) error
	FindHistory(ctx context.Context, stakeAddress string, epoch int32) (*AccountHistory, error)
	FindLastHistory(ctx context.Context, stakeAddress string) (*AccountHistory, error)
	FindAllHistory(ctx context.Context, stakeAddress string) ([]AccountHistory, error)
	// HistoryPools returns the distinct pool ids referenced by the
	// account's history rows.
	HistoryPools(ctx context.Context, stakeAddress string) ([]string, error)
	DeleteHistory(ctx context.Context, stakeAddress string) error

	CreateWithdrawal(ctx context.Context, withdrawal *AccountWithdrawal) error
	FindWithdrawals(ctx context.Context, stakeAddress string, epoch int32) ([]AccountWithdrawal, error)
	LastWithdrawalTxHash(ctx context.Context, stakeAddress string) (string, error)
	DeleteWithdrawals(ctx context.Context, stakeAddress string) error

	CreateMIR(ctx context.Context, mir *MIRTransaction) error
	FindMIRs(ctx context.Context, stakeAddress string, epoch int32) ([]MIRTransaction, error)
	LastMIRTxHash(ctx context.Context, stakeAddress string) (string, error)
	DeleteMIRs(ctx context.Context, stakeAddress string) error
}

type PriceRepository interface {
	SaveSpotPrice(ctx context.Context, price *SpotPrice) error
	FindSpotPrice(ctx context.Context, day time.Time, currency string) (*SpotPrice, error)
}
