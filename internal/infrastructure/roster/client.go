package roster

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

// Client fetches the member pool roster, a JSON document listing the pools
// whose delegators accrue loyalty.
type Client struct {
	url        string
	httpClient *resty.Client
	logger     *logger.Logger
}

type memberPoolResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewClient(cfg *config.Roster, log *logger.Logger) *Client {
	return &Client{
		url: cfg.URL,
		httpClient: resty.New().
			SetTimeout(cfg.RequestTimeout).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second),
		logger: log,
	}
}

func (c *Client) GetMemberPools(ctx context.Context) ([]domain.MemberPool, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: roster: %v", domain.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: roster: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode())
	}

	var raw []memberPoolResponse
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("%w: roster: decode: %v", domain.ErrUpstreamUnavailable, err)
	}

	pools := make([]domain.MemberPool, 0, len(raw))
	for _, p := range raw {
		if p.ID == "" {
			c.logger.Warnw("Roster entry without pool id skipped", "name", p.Name)
			continue
		}
		pools = append(pools, domain.MemberPool{ID: p.ID, Name: p.Name})
	}

	c.logger.Debugw("Fetched member pool roster", "count", len(pools))
	return pools, nil
}
