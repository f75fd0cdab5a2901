package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
)

type mockLedgerSource struct {
	mock.Mock
}

func (m *mockLedgerSource) GetLatestEpoch(ctx context.Context) (*domain.EpochInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EpochInfo), args.Error(1)
}

func (m *mockLedgerSource) GetEpochHistory(ctx context.Context, beforeEpoch int32, page, limit int) ([]domain.EpochInfo, error) {
	args := m.Called(ctx, beforeEpoch, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EpochInfo), args.Error(1)
}

func (m *mockLedgerSource) GetAccountInfo(ctx context.Context, stakeAddress string) (*domain.AccountInfo, error) {
	args := m.Called(ctx, stakeAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountInfo), args.Error(1)
}

func (m *mockLedgerSource) GetAccountStakeHistory(ctx context.Context, stakeAddress string, page, limit int) ([]domain.StakeHistoryEntry, error) {
	args := m.Called(ctx, stakeAddress, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StakeHistoryEntry), args.Error(1)
}

func (m *mockLedgerSource) GetAccountRewardsHistory(ctx context.Context, stakeAddress string, page, limit int) ([]domain.RewardHistoryEntry, error) {
	args := m.Called(ctx, stakeAddress, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RewardHistoryEntry), args.Error(1)
}

func (m *mockLedgerSource) GetAllAccountWithdrawals(ctx context.Context, stakeAddress, sinceTxHash string) ([]domain.WithdrawalEntry, error) {
	args := m.Called(ctx, stakeAddress, sinceTxHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WithdrawalEntry), args.Error(1)
}

func (m *mockLedgerSource) GetAllAccountMIRs(ctx context.Context, stakeAddress, sinceTxHash string) ([]domain.MIREntry, error) {
	args := m.Called(ctx, stakeAddress, sinceTxHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MIREntry), args.Error(1)
}

func (m *mockLedgerSource) GetPoolInfo(ctx context.Context, poolID string) (*domain.PoolInfo, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolInfo), args.Error(1)
}

func (m *mockLedgerSource) GetLastPoolCert(ctx context.Context, poolID string) (*domain.PoolCertEntry, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolCertEntry), args.Error(1)
}

func (m *mockLedgerSource) GetAllPoolCerts(ctx context.Context, poolID, sinceTxHash string) ([]domain.PoolCertEntry, error) {
	args := m.Called(ctx, poolID, sinceTxHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PoolCertEntry), args.Error(1)
}

func (m *mockLedgerSource) GetPoolHistory(ctx context.Context, poolID string, page, limit int) ([]domain.PoolHistoryEntry, error) {
	args := m.Called(ctx, poolID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PoolHistoryEntry), args.Error(1)
}

type mockEpochRepository struct {
	mock.Mock
}

func (m *mockEpochRepository) Create(ctx context.Context, epoch *domain.Epoch) error {
	return m.Called(ctx, epoch).Error(0)
}

func (m *mockEpochRepository) FindByNumber(ctx context.Context, number int32) (*domain.Epoch, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Epoch), args.Error(1)
}

func (m *mockEpochRepository) FindLatest(ctx context.Context) (*domain.Epoch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Epoch), args.Error(1)
}

func (m *mockEpochRepository) FindOneFromTime(ctx context.Context, t time.Time) (*domain.Epoch, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Epoch), args.Error(1)
}

func (m *mockEpochRepository) FindOneStartAfter(ctx context.Context, t time.Time) (*domain.Epoch, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Epoch), args.Error(1)
}

type mockPoolRepository struct {
	mock.Mock
}

func (m *mockPoolRepository) Save(ctx context.Context, pool *domain.Pool) error {
	return m.Called(ctx, pool).Error(0)
}

func (m *mockPoolRepository) FindByID(ctx context.Context, poolID string) (*domain.Pool, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Pool), args.Error(1)
}

func (m *mockPoolRepository) FindAll(ctx context.Context) ([]domain.Pool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Pool), args.Error(1)
}

func (m *mockPoolRepository) FindMembers(ctx context.Context) ([]domain.Pool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Pool), args.Error(1)
}

func (m *mockPoolRepository) CreateCert(ctx context.Context, cert *domain.PoolCert) error {
	return m.Called(ctx, cert).Error(0)
}

func (m *mockPoolRepository) FindCert(ctx context.Context, poolID, txHash string) (*domain.PoolCert, error) {
	args := m.Called(ctx, poolID, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolCert), args.Error(1)
}

func (m *mockPoolRepository) FindLastCert(ctx context.Context, poolID string) (*domain.PoolCert, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolCert), args.Error(1)
}

func (m *mockPoolRepository) FindCertAt(ctx context.Context, poolID string, untilEpoch int32) (*domain.PoolCert, error) {
	args := m.Called(ctx, poolID, untilEpoch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolCert), args.Error(1)
}

func (m *mockPoolRepository) CreateHistory(ctx context.Context, history *domain.PoolHistory) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockPoolRepository) SaveHistory(ctx context.Context, history *domain.PoolHistory) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockPoolRepository) FindHistory(ctx context.Context, poolID string, epoch int32) (*domain.PoolHistory, error) {
	args := m.Called(ctx, poolID, epoch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolHistory), args.Error(1)
}

func (m *mockPoolRepository) FindLastHistory(ctx context.Context, poolID string) (*domain.PoolHistory, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PoolHistory), args.Error(1)
}

func (m *mockPoolRepository) FindAllHistory(ctx context.Context, poolID string) ([]domain.PoolHistory, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PoolHistory), args.Error(1)
}

func (m *mockPoolRepository) FindUnrevised(ctx context.Context, maxEpoch int32) ([]domain.PoolHistory, error) {
	args := m.Called(ctx, maxEpoch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PoolHistory), args.Error(1)
}

func (m *mockPoolRepository) ResetRevised(ctx context.Context, poolIDs []string) error {
	return m.Called(ctx, poolIDs).Error(0)
}

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *mockAccountRepository) FindByAddress(ctx context.Context, stakeAddress string) (*domain.Account, error) {
	args := m.Called(ctx, stakeAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) FindAll(ctx context.Context) ([]domain.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

func (m *mockAccountRepository) FindCorrupted(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockAccountRepository) CreateHistory(ctx context.Context, history *domain.AccountHistory) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockAccountRepository) SaveHistory(ctx context.Context, history *domain.AccountHistory) error {
	return m.Called(ctx, history).Error(0)
}

func (m *mockAccountRepository) FindHistory(ctx context.Context, stakeAddress string, epoch int32) (*domain.AccountHistory, error) {
	args := m.Called(ctx, stakeAddress, epoch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountHistory), args.Error(1)
}

func (m *mockAccountRepository) FindLastHistory(ctx context.Context, stakeAddress string) (*domain.AccountHistory, error) {
	args := m.Called(ctx, stakeAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountHistory), args.Error(1)
}

func (m *mockAccountRepository) FindAllHistory(ctx context.Context, stakeAddress string) ([]domain.AccountHistory, error) {
	args := m.Called(ctx, stakeAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccountHistory), args.Error(1)
}

func (m *mockAccountRepository) HistoryPools(ctx context.Context, stakeAddress string) ([]string, error) {
	args := m.Called(ctx, stakeAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockAccountRepository) DeleteHistory(ctx context.Context, stakeAddress string) error {
	return m.Called(ctx, stakeAddress).Error(0)
}

func (m *mockAccountRepository) CreateWithdrawal(ctx context.Context, withdrawal *domain.AccountWithdrawal) error {
	return m.Called(ctx, withdrawal).Error(0)
}

func (m *mockAccountRepository) FindWithdrawals(ctx context.Context, stakeAddress string, epoch int32) ([]domain.AccountWithdrawal, error) {
	args := m.Called(ctx, stakeAddress, epoch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccountWithdrawal), args.Error(1)
}

func (m *mockAccountRepository) LastWithdrawalTxHash(ctx context.Context, stakeAddress string) (string, error) {
	args := m.Called(ctx, stakeAddress)
	return args.String(0), args.Error(1)
}

func (m *mockAccountRepository) DeleteWithdrawals(ctx context.Context, stakeAddress string) error {
	return m.Called(ctx, stakeAddress).Error(0)
}

func (m *mockAccountRepository) CreateMIR(ctx context.Context, mir *domain.MIRTransaction) error {
	return m.Called(ctx, mir).Error(0)
}

func (m *mockAccountRepository) FindMIRs(ctx context.Context, stakeAddress string, epoch int32) ([]domain.MIRTransaction, error) {
	args := m.Called(ctx, stakeAddress, epoch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MIRTransaction), args.Error(1)
}

func (m *mockAccountRepository) LastMIRTxHash(ctx context.Context, stakeAddress string) (string, error) {
	args := m.Called(ctx, stakeAddress)
	return args.String(0), args.Error(1)
}

func (m *mockAccountRepository) DeleteMIRs(ctx context.Context, stakeAddress string) error {
	return m.Called(ctx, stakeAddress).Error(0)
}

type mockRosterSource struct {
	mock.Mock
}

func (m *mockRosterSource) GetMemberPools(ctx context.Context) ([]domain.MemberPool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MemberPool), args.Error(1)
}

type mockPriceSource struct {
	mock.Mock
}

func (m *mockPriceSource) GetSpotPrice(ctx context.Context, currency string) (float64, error) {
	args := m.Called(ctx, currency)
	return args.Get(0).(float64), args.Error(1)
}

type mockPriceRepository struct {
	mock.Mock
}

func (m *mockPriceRepository) SaveSpotPrice(ctx context.Context, price *domain.SpotPrice) error {
	return m.Called(ctx, price).Error(0)
}

func (m *mockPriceRepository) FindSpotPrice(ctx context.Context, day time.Time, currency string) (*domain.SpotPrice, error) {
	args := m.Called(ctx, day, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SpotPrice), args.Error(1)
}
