package blockfrost

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	resty "github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
	"github.com/stakewatch/cardano-rewards-service/pkg/metrics"
)

// Client implements domain.LedgerSource against the Blockfrost API. Every
// request passes through a fixed-interval rate limiter shared by all sync
// components.
type Client struct {
	baseURL     string
	httpClient  *resty.Client
	logger      *logger.Logger
	rateLimiter *rate.Limiter
}

func NewClient(cfg *config.Blockfrost, log *logger.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryDelay).
		SetRetryMaxWaitTime(cfg.RetryDelay * 3).
		SetHeader("project_id", cfg.ProjectID).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		})

	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  httpClient,
		logger:      log,
		rateLimiter: rate.NewLimiter(rate.Every(cfg.RateInterval), 1),
	}
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", domain.ErrUpstreamUnavailable, err)
	}

	c.logger.Debugw("Fetching from Blockfrost", "path", path, "params", params)

	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeader("Accept", "application/json").
		Get(c.baseURL + path)

	duration := time.Since(start).Seconds()
	success := err == nil && resp.StatusCode() == 200
	metrics.RecordUpstreamRequest(duration, success)

	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, path, err)
	}
	if resp.StatusCode() == 404 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %s: status %d", domain.ErrUpstreamUnavailable, path, resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", domain.ErrUpstreamUnavailable, path, err)
	}

	return nil
}

func pageParams(page, limit int, order string) map[string]string {
	return map[string]string{
		"page":  strconv.Itoa(page),
		"count": strconv.Itoa(limit),
		"order": order,
	}
}

func parseLovelace(s string) int64 {
	if s == "" {
		return 0
	}
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return amount
}

func (c *Client) GetLatestEpoch(ctx context.Context) (*domain.EpochInfo, error) {
	var resp epochResponse
	if err := c.get(ctx, "/epochs/latest", nil, &resp); err != nil {
		return nil, err
	}

	return &domain.EpochInfo{
		Number:    resp.Epoch,
		StartTime: time.Unix(resp.StartTime, 0).UTC(),
		EndTime:   time.Unix(resp.EndTime, 0).UTC(),
	}, nil
}

// GetEpochHistory returns epochs preceding beforeEpoch, newest first within
// the requested page.
func (c *Client) GetEpochHistory(ctx context.Context, beforeEpoch int32, page, limit int) ([]domain.EpochInfo, error) {
	var resp []epochResponse
	path := fmt.Sprintf("/epochs/%d/previous", beforeEpoch)
	if err := c.get(ctx, path, pageParams(page, limit, "desc"), &resp); err != nil {
		return nil, err
	}

	epochs := make([]domain.EpochInfo, 0, len(resp))
	for _, e := range resp {
		epochs = append(epochs, domain.EpochInfo{
			Number:    e.Epoch,
			StartTime: time.Unix(e.StartTime, 0).UTC(),
			EndTime:   time.Unix(e.EndTime, 0).UTC(),
		})
	}
	return epochs, nil
}

func (c *Client) GetAccountInfo(ctx context.Context, stakeAddress string) (*domain.AccountInfo, error) {
	var resp accountResponse
	if err := c.get(ctx, "/accounts/"+stakeAddress, nil, &resp); err != nil {
		return nil, err
	}

	info := &domain.AccountInfo{
		StakeAddress: resp.StakeAddress,
		Active:       resp.Active,
		RewardsSum:   parseLovelace(resp.RewardsSum),
		Withdrawable: parseLovelace(resp.WithdrawableAmount),
	}
	if resp.PoolID != nil {
		info.PoolID = *resp.PoolID
	}
	return info, nil
}

func (c *Client) GetAccountStakeHistory(ctx context.Context, stakeAddress string, page, limit int) ([]domain.StakeHistoryEntry, error) {
	var resp []stakeHistoryResponse
	path := "/accounts/" + stakeAddress + "/history"
	if err := c.get(ctx, path, pageParams(page, limit, "desc"), &resp); err != nil {
		return nil, err
	}

	entries := make([]domain.StakeHistoryEntry, 0, len(resp))
	for _, e := range resp {
		entries = append(entries, domain.StakeHistoryEntry{
			Epoch:  e.ActiveEpoch,
			Amount: parseLovelace(e.Amount),
			PoolID: e.PoolID,
		})
	}
	return entries, nil
}

func (c *Client) GetAccountRewardsHistory(ctx context.Context, stakeAddress string, page, limit int) ([]domain.RewardHistoryEntry, error) {
	var resp []rewardResponse
	path := "/accounts/" + stakeAddress + "/rewards"
	if err := c.get(ctx, path, pageParams(page, limit, "desc"), &resp); err != nil {
		return nil, err
	}

	entries := make([]domain.RewardHistoryEntry, 0, len(resp))
	for _, e := range resp {
		entries = append(entries, domain.RewardHistoryEntry{
			Epoch:   e.Epoch,
			Rewards: parseLovelace(e.Amount),
			PoolID:  e.PoolID,
			Type:    e.Type,
		})
	}
	return entries, nil
}

// collectSince pages a newest-first tx-hash feed until sinceTxHash (exclusive)
// or the feed is exhausted, returning the collected raw pages newest first.
func collectSince[T any](ctx context.Context, fetch func(ctx context.Context, page int) ([]T, error), txHash func(T) string, sinceTxHash string) ([]T, error) {
	const pageSize = 100

	var collected []T
	for page := 1; ; page++ {
		batch, err := fetch(ctx, page)
		if err != nil {
			return nil, err
		}
		for _, item := range batch {
			if sinceTxHash != "" && txHash(item) == sinceTxHash {
				return collected, nil
			}
			collected = append(collected, item)
		}
		if len(batch) < pageSize {
			return collected, nil
		}
	}
}

func (c *Client) GetAllAccountWithdrawals(ctx context.Context, stakeAddress, sinceTxHash string) ([]domain.WithdrawalEntry, error) {
	path := "/accounts/" + stakeAddress + "/withdrawals"
	raw, err := collectSince(ctx,
		func(ctx context.Context, page int) ([]withdrawalResponse, error) {
			var resp []withdrawalResponse
			if err := c.get(ctx, path, pageParams(page, 100, "desc"), &resp); err != nil {
				return nil, err
			}
			return resp, nil
		},
		func(w withdrawalResponse) string { return w.TxHash },
		sinceTxHash,
	)
	if err != nil {
		return nil, err
	}

	// Oldest first, with block data resolved per transaction.
	entries := make([]domain.WithdrawalEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		tx, err := c.getTransaction(ctx, raw[i].TxHash)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.WithdrawalEntry{
			TxHash:    raw[i].TxHash,
			Block:     tx.BlockHeight,
			BlockTime: time.Unix(tx.BlockTime, 0).UTC(),
			Amount:    parseLovelace(raw[i].Amount),
		})
	}
	return entries, nil
}

func (c *Client) GetAllAccountMIRs(ctx context.Context, stakeAddress, sinceTxHash string) ([]domain.MIREntry, error) {
	path := "/accounts/" + stakeAddress + "/mirs"
	raw, err := collectSince(ctx,
		func(ctx context.Context, page int) ([]mirResponse, error) {
			var resp []mirResponse
			if err := c.get(ctx, path, pageParams(page, 100, "desc"), &resp); err != nil {
				return nil, err
			}
			return resp, nil
		},
		func(m mirResponse) string { return m.TxHash },
		sinceTxHash,
	)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.MIREntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		tx, err := c.getTransaction(ctx, raw[i].TxHash)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.MIREntry{
			TxHash:      raw[i].TxHash,
			BlockHeight: tx.BlockHeight,
			TxIndex:     tx.Index,
			BlockTime:   time.Unix(tx.BlockTime, 0).UTC(),
			Amount:      parseLovelace(raw[i].Amount),
		})
	}
	return entries, nil
}

func (c *Client) getTransaction(ctx context.Context, txHash string) (*txResponse, error) {
	var resp txResponse
	if err := c.get(ctx, "/txs/"+txHash, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetPoolInfo(ctx context.Context, poolID string) (*domain.PoolInfo, error) {
	var resp poolResponse
	if err := c.get(ctx, "/pools/"+poolID, nil, &resp); err != nil {
		return nil, err
	}

	info := &domain.PoolInfo{
		ID:             resp.PoolID,
		Active:         len(resp.Retirement) == 0,
		LiveStake:      parseLovelace(resp.LiveStake),
		LiveDelegators: resp.LiveDelegators,
		DeclaredPledge: parseLovelace(resp.DeclaredPledge),
	}

	// Metadata is optional on-chain; a miss is not an error.
	var meta poolMetadataResponse
	if err := c.get(ctx, "/pools/"+poolID+"/metadata", nil, &meta); err == nil {
		info.Name = meta.Name
		info.Ticker = meta.Ticker
	}

	return info, nil
}

func (c *Client) GetLastPoolCert(ctx context.Context, poolID string) (*domain.PoolCertEntry, error) {
	var resp []poolUpdateResponse
	path := "/pools/" + poolID + "/updates"
	if err := c.get(ctx, path, pageParams(1, 1, "desc"), &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: no cert for pool %s", domain.ErrNotFound, poolID)
	}
	return c.resolveCert(ctx, resp[0])
}

// GetAllPoolCerts returns certificates newer than sinceTxHash, oldest first.
func (c *Client) GetAllPoolCerts(ctx context.Context, poolID, sinceTxHash string) ([]domain.PoolCertEntry, error) {
	path := "/pools/" + poolID + "/updates"
	raw, err := collectSince(ctx,
		func(ctx context.Context, page int) ([]poolUpdateResponse, error) {
			var resp []poolUpdateResponse
			if err := c.get(ctx, path, pageParams(page, 100, "desc"), &resp); err != nil {
				return nil, err
			}
			return resp, nil
		},
		func(u poolUpdateResponse) string { return u.TxHash },
		sinceTxHash,
	)
	if err != nil {
		return nil, err
	}

	certs := make([]domain.PoolCertEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		cert, err := c.resolveCert(ctx, raw[i])
		if err != nil {
			return nil, err
		}
		certs = append(certs, *cert)
	}
	return certs, nil
}

// resolveCert expands a pool update reference into a full certificate via the
// owning transaction.
func (c *Client) resolveCert(ctx context.Context, update poolUpdateResponse) (*domain.PoolCertEntry, error) {
	tx, err := c.getTransaction(ctx, update.TxHash)
	if err != nil {
		return nil, err
	}

	cert := &domain.PoolCertEntry{
		TxHash: update.TxHash,
		Block:  tx.BlockHeight,
	}

	if update.Action == actionDeregistered {
		var retires []poolRetireDetailResponse
		if err := c.get(ctx, "/txs/"+update.TxHash+"/pool_retires", nil, &retires); err != nil {
			return nil, err
		}
		if len(retires) == 0 {
			return nil, fmt.Errorf("%w: retirement detail for tx %s", domain.ErrNotFound, update.TxHash)
		}
		cert.Active = false
		cert.Epoch = retires[0].RetiringEpoch
		return cert, nil
	}

	var updates []poolUpdateDetailResponse
	if err := c.get(ctx, "/txs/"+update.TxHash+"/pool_updates", nil, &updates); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: update detail for tx %s", domain.ErrNotFound, update.TxHash)
	}

	detail := updates[0]
	cert.Active = true
	cert.Epoch = detail.ActiveEpoch
	cert.Margin = detail.MarginCost
	cert.FixedFee = parseLovelace(detail.FixedCost)
	cert.RewardAccount = detail.RewardAccount
	cert.Owners = detail.Owners
	return cert, nil
}

func (c *Client) GetPoolHistory(ctx context.Context, poolID string, page, limit int) ([]domain.PoolHistoryEntry, error) {
	var resp []poolHistoryResponse
	path := "/pools/" + poolID + "/history"
	if err := c.get(ctx, path, pageParams(page, limit, "desc"), &resp); err != nil {
		return nil, err
	}

	entries := make([]domain.PoolHistoryEntry, 0, len(resp))
	for _, e := range resp {
		entries = append(entries, domain.PoolHistoryEntry{
			Epoch:       e.Epoch,
			Rewards:     parseLovelace(e.Rewards),
			Fees:        parseLovelace(e.Fees),
			Blocks:      e.Blocks,
			ActiveStake: parseLovelace(e.ActiveStake),
		})
	}
	return entries, nil
}
