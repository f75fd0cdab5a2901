package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
)

const testPoolID = "pool1testid"

func TestPoolSyncer_SyncCerts_NoopOnMatchingWatermark(t *testing.T) {
	source := new(mockLedgerSource)
	pools := new(mockPoolRepository)

	pool := &domain.Pool{ID: testPoolID, LastCertTxHash: "certA"}
	source.On("GetLastPoolCert", mock.Anything, testPoolID).
		Return(&domain.PoolCertEntry{TxHash: "certA"}, nil)

	syncer := NewPoolSyncer(source, pools, testSyncConfig(), testLogger(t))
	require.NoError(t, syncer.SyncCerts(context.Background(), pool, epochAt(210)))

	source.AssertNotCalled(t, "GetAllPoolCerts", mock.Anything, mock.Anything, mock.Anything)
}

func TestPoolSyncer_SyncCerts_IngestsAndAdvancesWatermark(t *testing.T) {
	source := new(mockLedgerSource)
	pools := new(mockPoolRepository)

	pool := &domain.Pool{ID: testPoolID, LastCertTxHash: "certA"}
	source.On("GetLastPoolCert", mock.Anything, testPoolID).
		Return(&domain.PoolCertEntry{TxHash: "certC"}, nil)
	source.On("GetAllPoolCerts", mock.Anything, testPoolID, "certA").Return([]domain.PoolCertEntry{
		{TxHash: "certB", Epoch: 209, Active: true, Owners: []string{"owner1"}, RewardAccount: "reward1", Block: 100},
		{TxHash: "certC", Epoch: 210, Active: true, Owners: []string{"owner1", "owner2"}, RewardAccount: "reward1", Block: 200},
	}, nil)

	var stored []string
	pools.On("CreateCert", mock.Anything, mock.AnythingOfType("*domain.PoolCert")).
		Run(func(args mock.Arguments) {
			stored = append(stored, args.Get(1).(*domain.PoolCert).TxHash)
		}).
		Return(nil)
	pools.On("Save", mock.Anything, pool).Return(nil)

	syncer := NewPoolSyncer(source, pools, testSyncConfig(), testLogger(t))
	require.NoError(t, syncer.SyncCerts(context.Background(), pool, epochAt(210)))

	assert.Equal(t, []string{"certB", "certC"}, stored)
	assert.Equal(t, "certC", pool.LastCertTxHash)
}

func TestPoolSyncer_SyncCerts_DefersFutureEpochs(t *testing.T) {
	source := new(mockLedgerSource)
	pools := new(mockPoolRepository)

	pool := &domain.Pool{ID: testPoolID}
	source.On("GetLastPoolCert", mock.Anything, testPoolID).
		Return(&domain.PoolCertEntry{TxHash: "certFuture"}, nil)
	source.On("GetAllPoolCerts", mock.Anything, testPoolID, "").Return([]domain.PoolCertEntry{
		{TxHash: "certFuture", Epoch: 211, Active: true, Block: 300},
	}, nil)

	syncer := NewPoolSyncer(source, pools, testSyncConfig(), testLogger(t))
	require.NoError(t, syncer.SyncCerts(context.Background(), pool, epochAt(210)))

	pools.AssertNotCalled(t, "CreateCert", mock.Anything, mock.Anything)
	assert.Empty(t, pool.LastCertTxHash)
}

func TestPoolSyncer_SyncInfo(t *testing.T) {
	source := new(mockLedgerSource)
	pools := new(mockPoolRepository)

	pool := &domain.Pool{ID: testPoolID}
	source.On("GetPoolInfo", mock.Anything, testPoolID).Return(&domain.PoolInfo{
		ID:             testPoolID,
		Name:           "Test Pool",
		Ticker:         "TEST",
		Active:         true,
		LiveStake:      5000000,
		LiveDelegators: 42,
		DeclaredPledge: 1000000,
	}, nil)
	pools.On("Save", mock.Anything, pool).Return(nil)

	syncer := NewPoolSyncer(source, pools, testSyncConfig(), testLogger(t))
	require.NoError(t, syncer.SyncInfo(context.Background(), pool, epochAt(210)))

	assert.Equal(t, "Test Pool", pool.Name)
	assert.Equal(t, "TEST", pool.Ticker)
	assert.True(t, pool.Active)
	assert.Equal(t, int64(5000000), pool.LiveStake)
	assert.Equal(t, int32(210), pool.Epoch)

	// Second call within the same target epoch is a no-op.
	require.NoError(t, syncer.SyncInfo(context.Background(), pool, epochAt(210)))
	source.AssertNumberOfCalls(t, "GetPoolInfo", 1)
}

func TestPoolSyncer_SyncHistory(t *testing.T) {
	source := new(mockLedgerSource)
	pools := new(mockPoolRepository)

	pool := &domain.Pool{ID: testPoolID, Active: true}
	pools.On("FindLastHistory", mock.Anything, testPoolID).Return(nil, domain.ErrNotFound)
	// Newest first; epoch 210 is still in flight and must not be stored.
	source.On("GetPoolHistory", mock.Anything, testPoolID, 1, 100).Return([]domain.PoolHistoryEntry{
		{Epoch: 209, Rewards: 900, Fees: 100, Blocks: 3, ActiveStake: 4000000},
		{Epoch: 208, Rewards: 800, Fees: 100, Blocks: 2, ActiveStake: 3900000},
	}, nil)
	pools.On("FindCertAt", mock.Anything, testPoolID, int32(208)).
		Return(&domain.PoolCert{PoolID: testPoolID, TxHash: "certA"}, nil)
	pools.On("FindCertAt", mock.Anything, testPoolID, int32(209)).
		Return(&domain.PoolCert{PoolID: testPoolID, TxHash: "certB"}, nil)

	var rows []domain.PoolHistory
	pools.On("CreateHistory", mock.Anything, mock.AnythingOfType("*domain.PoolHistory")).
		Run(func(args mock.Arguments) {
			rows = append(rows, *args.Get(1).(*domain.PoolHistory))
		}).
		Return(nil)

	syncer := NewPoolSyncer(source, pools, testSyncConfig(), testLogger(t))
	require.NoError(t, syncer.SyncHistory(context.Background(), pool, epochAt(210)))

	require.Len(t, rows, 2)
	assert.Equal(t, int32(208), rows[0].Epoch)
	assert.Equal(t, "certA", rows[0].CertTxHash)
	assert.False(t, rows[0].RewardsRevised)
	assert.Equal(t, int32(209), rows[1].Epoch)
	assert.Equal(t, "certB", rows[1].CertTxHash)
}

func TestPoolSyncer_SyncHistory_RetiredPoolStopsAtRetirement(t *testing.T) {
	source := new(mockLedgerSource)
	pools := new(mockPoolRepository)

	pool := &domain.Pool{ID: testPoolID, Active: false}
	pools.On("FindLastHistory", mock.Anything, testPoolID).
		Return(&domain.PoolHistory{PoolID: testPoolID, Epoch: 208}, nil)
	// Retirement cert took effect at epoch 209; no rows past 208 exist.
	pools.On("FindLastCert", mock.Anything, testPoolID).
		Return(&domain.PoolCert{PoolID: testPoolID, TxHash: "retire", Epoch: 209, Active: false}, nil)

	syncer := NewPoolSyncer(source, pools, testSyncConfig(), testLogger(t))
	require.NoError(t, syncer.SyncHistory(context.Background(), pool, epochAt(212)))

	source.AssertNotCalled(t, "GetPoolHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
