package http

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

type Handler struct {
	epochs   domain.EpochRepository
	pools    domain.PoolRepository
	accounts domain.AccountRepository
	logger   *logger.Logger
}

func NewHandler(epochs domain.EpochRepository, pools domain.PoolRepository, accounts domain.AccountRepository, logger *logger.Logger) *Handler {
	return &Handler{
		epochs:   epochs,
		pools:    pools,
		accounts: accounts,
		logger:   logger,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	epoch, err := h.epochs.FindLatest(c.Request.Context())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		h.logger.Errorw("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	resp := gin.H{"status": "healthy"}
	if epoch != nil {
		resp["last_epoch"] = epoch.Number
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetReadiness(c *gin.Context) {
	if _, err := h.epochs.FindLatest(c.Request.Context()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Store reachable but the first sync pass has not completed.
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "no epochs synced yet",
			})
			return
		}
		h.logger.Errorw("Readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

func (h *Handler) GetAccountHistory(c *gin.Context) {
	address := c.Param("address")

	account, err := h.accounts.FindByAddress(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Account not found",
			})
			return
		}
		h.logger.Errorw("Failed to load account", "error", err, "stakeAddress", address)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve account",
		})
		return
	}

	history, err := h.accounts.FindAllHistory(c.Request.Context(), address)
	if err != nil {
		h.logger.Errorw("Failed to load account history", "error", err, "stakeAddress", address)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve account history",
		})
		return
	}
	if history == nil {
		history = []domain.AccountHistory{}
	}

	if c.Query("format") == "csv" {
		h.writeHistoryCSV(c, address, history)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stake_address": account.StakeAddress,
		"pool_id":       account.PoolID,
		"loyalty":       account.Loyalty,
		"data":          history,
	})
}

var historyCSVHeader = []string{
	"epoch", "pool_id", "active_stake", "balance", "rewards", "revised_rewards",
	"op_rewards", "mir", "refund", "withdrawable", "withdrawn", "owner", "stake_share",
}

func (h *Handler) writeHistoryCSV(c *gin.Context, address string, history []domain.AccountHistory) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+address+`.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	if err := w.Write(historyCSVHeader); err != nil {
		h.logger.Errorw("Failed to write CSV header", "error", err)
		return
	}

	for _, row := range history {
		record := []string{
			strconv.FormatInt(int64(row.Epoch), 10),
			row.PoolID,
			strconv.FormatInt(row.ActiveStake, 10),
			strconv.FormatInt(row.Balance, 10),
			strconv.FormatInt(row.Rewards, 10),
			strconv.FormatInt(row.RevisedRewards, 10),
			strconv.FormatInt(row.OpRewards, 10),
			strconv.FormatInt(row.MIR, 10),
			strconv.FormatInt(row.Refund, 10),
			strconv.FormatInt(row.Withdrawable, 10),
			strconv.FormatInt(row.Withdrawn, 10),
			strconv.FormatBool(row.Owner),
			strconv.FormatFloat(row.StakeShare, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			h.logger.Errorw("Failed to write CSV row", "error", err)
			return
		}
	}
	w.Flush()
}

func (h *Handler) GetPoolHistory(c *gin.Context) {
	poolID := c.Param("poolID")

	pool, err := h.pools.FindByID(c.Request.Context(), poolID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Pool not found",
			})
			return
		}
		h.logger.Errorw("Failed to load pool", "error", err, "poolID", poolID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve pool",
		})
		return
	}

	history, err := h.pools.FindAllHistory(c.Request.Context(), poolID)
	if err != nil {
		h.logger.Errorw("Failed to load pool history", "error", err, "poolID", poolID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve pool history",
		})
		return
	}
	if history == nil {
		history = []domain.PoolHistory{}
	}

	c.JSON(http.StatusOK, gin.H{
		"pool_id":   pool.ID,
		"name":      pool.Name,
		"ticker":    pool.Ticker,
		"is_member": pool.IsMember,
		"active":    pool.Active,
		"data":      history,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats := gin.H{}

	if epoch, err := h.epochs.FindLatest(ctx); err == nil {
		stats["last_epoch"] = epoch.Number
	}

	pools, err := h.pools.FindAll(ctx)
	if err != nil {
		h.logger.Errorw("Failed to count pools", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve statistics",
		})
		return
	}
	members := 0
	for _, p := range pools {
		if p.IsMember {
			members++
		}
	}
	stats["total_pools"] = len(pools)
	stats["member_pools"] = members

	accounts, err := h.accounts.FindAll(ctx)
	if err != nil {
		h.logger.Errorw("Failed to count accounts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve statistics",
		})
		return
	}
	stats["total_accounts"] = len(accounts)

	c.JSON(http.StatusOK, stats)
}
