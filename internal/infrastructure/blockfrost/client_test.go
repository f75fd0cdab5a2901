package blockfrost

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log, err := logger.New("debug", "test")
	require.NoError(t, err)

	client := NewClient(&config.Blockfrost{
		BaseURL:        server.URL,
		ProjectID:      "test-project",
		RequestTimeout: 5 * time.Second,
		MaxRetries:     0,
		RetryDelay:     time.Millisecond,
		RateInterval:   time.Microsecond,
	}, log)

	return client, server
}

func TestClient_GetLatestEpoch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/epochs/latest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-project", r.Header.Get("project_id"))
		fmt.Fprint(w, `{"epoch":312,"start_time":1641850000,"end_time":1642282000}`)
	})

	client, _ := newTestClient(t, mux)

	epoch, err := client.GetLatestEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(312), epoch.Number)
	assert.Equal(t, time.Unix(1641850000, 0).UTC(), epoch.StartTime)
	assert.Equal(t, time.Unix(1642282000, 0).UTC(), epoch.EndTime)
}

func TestClient_GetLatestEpoch_Unavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/epochs/latest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	client, _ := newTestClient(t, mux)

	_, err := client.GetLatestEpoch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestClient_GetAccountInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/stake1test", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stake_address":"stake1test","active":true,"pool_id":"pool1abc","rewards_sum":"123456789","withdrawable_amount":"5000000"}`)
	})

	client, _ := newTestClient(t, mux)

	info, err := client.GetAccountInfo(context.Background(), "stake1test")
	require.NoError(t, err)
	assert.Equal(t, "pool1abc", info.PoolID)
	assert.Equal(t, int64(123456789), info.RewardsSum)
	assert.Equal(t, int64(5000000), info.Withdrawable)
	assert.True(t, info.Active)
}

func TestClient_GetAccountInfo_NotFound(t *testing.T) {
	client, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.GetAccountInfo(context.Background(), "stake1unknown")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_GetAccountStakeHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/stake1test/history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "25", r.URL.Query().Get("count"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		fmt.Fprint(w, `[{"active_epoch":310,"amount":"2000000","pool_id":"pool1abc"},{"active_epoch":309,"amount":"1000000","pool_id":"pool1abc"}]`)
	})

	client, _ := newTestClient(t, mux)

	entries, err := client.GetAccountStakeHistory(context.Background(), "stake1test", 1, 25)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int32(310), entries[0].Epoch)
	assert.Equal(t, int64(2000000), entries[0].Amount)
	assert.Equal(t, "pool1abc", entries[0].PoolID)
}

func TestClient_GetAccountRewardsHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/stake1test/rewards", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"epoch":308,"amount":"50000","pool_id":"pool1abc","type":"member"},{"epoch":308,"amount":"70000","pool_id":"pool1abc","type":"leader"}]`)
	})

	client, _ := newTestClient(t, mux)

	entries, err := client.GetAccountRewardsHistory(context.Background(), "stake1test", 1, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.RewardTypeMember, entries[0].Type)
	assert.Equal(t, domain.RewardTypeLeader, entries[1].Type)
	assert.Equal(t, int64(70000), entries[1].Rewards)
}

func TestClient_GetAllAccountWithdrawals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/stake1test/withdrawals", func(w http.ResponseWriter, r *http.Request) {
		// Newest first; tx2 is the already-known watermark.
		fmt.Fprint(w, `[{"tx_hash":"tx4","amount":"400"},{"tx_hash":"tx3","amount":"300"},{"tx_hash":"tx2","amount":"200"},{"tx_hash":"tx1","amount":"100"}]`)
	})
	mux.HandleFunc("/txs/tx3", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hash":"tx3","block_height":700,"block_time":1641900000,"index":1}`)
	})
	mux.HandleFunc("/txs/tx4", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hash":"tx4","block_height":800,"block_time":1641950000,"index":2}`)
	})

	client, _ := newTestClient(t, mux)

	entries, err := client.GetAllAccountWithdrawals(context.Background(), "stake1test", "tx2")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Oldest first after the watermark.
	assert.Equal(t, "tx3", entries[0].TxHash)
	assert.Equal(t, int64(300), entries[0].Amount)
	assert.Equal(t, int64(700), entries[0].Block)
	assert.Equal(t, "tx4", entries[1].TxHash)
	assert.Equal(t, time.Unix(1641950000, 0).UTC(), entries[1].BlockTime)
}

func TestClient_GetAllAccountMIRs_NoWatermark(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/stake1test/mirs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"tx_hash":"mir2","amount":"2000"},{"tx_hash":"mir1","amount":"1000"}]`)
	})
	mux.HandleFunc("/txs/mir1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hash":"mir1","block_height":500,"block_time":1641860000,"index":0}`)
	})
	mux.HandleFunc("/txs/mir2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hash":"mir2","block_height":600,"block_time":1641870000,"index":3}`)
	})

	client, _ := newTestClient(t, mux)

	entries, err := client.GetAllAccountMIRs(context.Background(), "stake1test", "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "mir1", entries[0].TxHash)
	assert.Equal(t, int32(0), entries[0].TxIndex)
	assert.Equal(t, "mir2", entries[1].TxHash)
	assert.Equal(t, int64(600), entries[1].BlockHeight)
}

func TestClient_GetPoolInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pools/pool1abc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pool_id":"pool1abc","live_stake":"123000000","live_delegators":42,"declared_pledge":"500000000","registration":["txreg"],"retirement":[]}`)
	})
	mux.HandleFunc("/pools/pool1abc/metadata", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pool_id":"pool1abc","ticker":"WATCH","name":"Stakewatch Pool"}`)
	})

	client, _ := newTestClient(t, mux)

	info, err := client.GetPoolInfo(context.Background(), "pool1abc")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, int64(123000000), info.LiveStake)
	assert.Equal(t, int64(42), info.LiveDelegators)
	assert.Equal(t, "WATCH", info.Ticker)
	assert.Equal(t, "Stakewatch Pool", info.Name)
}

func TestClient_GetAllPoolCerts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pools/pool1abc/updates", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"tx_hash":"certB","cert_index":0,"action":"registered"},{"tx_hash":"certA","cert_index":0,"action":"registered"}]`)
	})
	mux.HandleFunc("/txs/certB", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hash":"certB","block_height":900,"block_time":1642000000,"index":0}`)
	})
	mux.HandleFunc("/txs/certB/pool_updates", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"pool_id":"pool1abc","margin_cost":0.02,"fixed_cost":"340000000","reward_account":"stake1reward","owners":["stake1a","stake1b"],"active_epoch":305}]`)
	})

	client, _ := newTestClient(t, mux)

	certs, err := client.GetAllPoolCerts(context.Background(), "pool1abc", "certA")
	require.NoError(t, err)
	require.Len(t, certs, 1)

	cert := certs[0]
	assert.Equal(t, "certB", cert.TxHash)
	assert.Equal(t, int32(305), cert.Epoch)
	assert.True(t, cert.Active)
	assert.Equal(t, 0.02, cert.Margin)
	assert.Equal(t, int64(340000000), cert.FixedFee)
	assert.Equal(t, []string{"stake1a", "stake1b"}, cert.Owners)
	assert.Equal(t, int64(900), cert.Block)
}

func TestClient_GetPoolHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pools/pool1abc/history", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"epoch":310,"blocks":12,"active_stake":"9000000","rewards":"800000","fees":"100000"}]`)
	})

	client, _ := newTestClient(t, mux)

	entries, err := client.GetPoolHistory(context.Background(), "pool1abc", 1, 25)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int32(310), entries[0].Epoch)
	assert.Equal(t, int64(800000), entries[0].Rewards)
	assert.Equal(t, int64(100000), entries[0].Fees)
	assert.Equal(t, int32(12), entries[0].Blocks)
}

func TestParseLovelace(t *testing.T) {
	assert.Equal(t, int64(0), parseLovelace(""))
	assert.Equal(t, int64(0), parseLovelace("not-a-number"))
	assert.Equal(t, int64(42), parseLovelace("42"))
	assert.Equal(t, int64(45000000000000000), parseLovelace("45000000000000000"))
}
