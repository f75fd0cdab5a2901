package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	resty "github.com/go-resty/resty/v2"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

// Client fetches the ADA spot price from a CoinGecko-compatible API.
type Client struct {
	baseURL    string
	httpClient *resty.Client
	logger     *logger.Logger
}

func NewClient(cfg *config.Prices, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.URL,
		httpClient: resty.New().
			SetTimeout(cfg.RequestTimeout).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second),
		logger: log,
	}
}

func (c *Client) GetSpotPrice(ctx context.Context, currency string) (float64, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           "cardano",
			"vs_currencies": currency,
		}).
		SetHeader("Accept", "application/json").
		Get(c.baseURL + "/simple/price")
	if err != nil {
		return 0, fmt.Errorf("%w: prices: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("%w: prices: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode())
	}

	var body map[string]map[string]float64
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return 0, fmt.Errorf("%w: prices: decode: %v", domain.ErrUpstreamUnavailable, err)
	}

	price, ok := body["cardano"][currency]
	if !ok {
		return 0, fmt.Errorf("%w: prices: no quote for %s", domain.ErrNotFound, currency)
	}

	c.logger.Debugw("Fetched spot price", "currency", currency, "price", price)
	return price, nil
}
