package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
	"github.com/stakewatch/cardano-rewards-service/pkg/metrics"
)

// Service drives the scheduled sync pass. A pass runs each step for every
// tracked pool and account in dependency order; failures are scoped to the
// pool or account they occur on so one bad upstream response never stalls
// the rest of the fleet.
type Service struct {
	cfg *config.Config

	roster    domain.RosterSource
	prices    domain.PriceSource
	pools     domain.PoolRepository
	accounts  domain.AccountRepository
	priceRepo domain.PriceRepository

	epochSyncer   *EpochSyncer
	poolSyncer    *PoolSyncer
	accountSyncer *AccountSyncer
	historySyncer *HistorySyncer
	reviser       *Reviser
	integrity     *IntegrityChecker

	clock  clockwork.Clock
	cron   *cron.Cron
	mu     sync.Mutex
	logger *logger.Logger
}

func NewService(
	cfg *config.Config,
	roster domain.RosterSource,
	prices domain.PriceSource,
	pools domain.PoolRepository,
	accounts domain.AccountRepository,
	priceRepo domain.PriceRepository,
	epochSyncer *EpochSyncer,
	poolSyncer *PoolSyncer,
	accountSyncer *AccountSyncer,
	historySyncer *HistorySyncer,
	reviser *Reviser,
	integrity *IntegrityChecker,
	clock clockwork.Clock,
	log *logger.Logger,
) *Service {
	return &Service{
		cfg:           cfg,
		roster:        roster,
		prices:        prices,
		pools:         pools,
		accounts:      accounts,
		priceRepo:     priceRepo,
		epochSyncer:   epochSyncer,
		poolSyncer:    poolSyncer,
		accountSyncer: accountSyncer,
		historySyncer: historySyncer,
		reviser:       reviser,
		integrity:     integrity,
		clock:         clock,
		cron:          cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:        log,
	}
}

// Start repairs any corrupted state left by a previous crash, optionally
// runs an immediate pass, and schedules the recurring one.
func (s *Service) Start(ctx context.Context) error {
	if err := s.integrity.Run(ctx); err != nil {
		s.logger.Errorw("Integrity check failed", "error", err)
	}

	if s.cfg.Sync.RunOnStartup {
		go s.RunSyncPass(ctx)
	}

	if _, err := s.cron.AddFunc(s.cfg.Sync.Schedule, func() {
		s.RunSyncPass(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Infow("Sync scheduler started", "schedule", s.cfg.Sync.Schedule)
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *Service) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Infow("Sync scheduler stopped")
}

// RunSyncPass executes one full pass. The mutex keeps a slow pass and the
// next scheduled one from interleaving.
func (s *Service) RunSyncPass(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock.Now()
	defer func() {
		metrics.SyncPassDuration.Observe(s.clock.Since(start).Seconds())
	}()

	s.logger.Infow("Sync pass starting")

	s.syncMembership(ctx)

	lastEpoch := s.epochSyncer.Sync(ctx)
	if lastEpoch == nil {
		s.logger.Warnw("Epoch sync failed, aborting pass")
		return
	}

	s.syncPools(ctx, lastEpoch)
	s.syncAccounts(ctx, lastEpoch)
	s.syncSpotPrice(ctx)

	if err := s.reviser.ReviseAll(ctx, lastEpoch.Number); err != nil {
		s.logger.Errorw("Reward revision pass failed", "error", err)
		metrics.SyncPassErrors.Inc()
	}

	s.logger.Infow("Sync pass finished", "epoch", lastEpoch.Number, "duration", s.clock.Since(start))
}

// syncMembership reconciles stored pool membership flags with the roster.
// A roster outage keeps the previous membership.
func (s *Service) syncMembership(ctx context.Context) {
	memberPools, err := s.roster.GetMemberPools(ctx)
	if err != nil {
		s.logger.Warnw("Roster unavailable, keeping stored membership", "error", err)
		return
	}

	current := make(map[string]bool, len(memberPools))
	for _, mp := range memberPools {
		current[mp.ID] = true

		pool, err := s.pools.FindByID(ctx, mp.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Errorw("Failed to look up member pool", "error", err, "poolID", mp.ID)
				continue
			}
			pool = &domain.Pool{ID: mp.ID, Name: mp.Name}
		}

		if !pool.IsMember {
			pool.IsMember = true
			if err := s.pools.Save(ctx, pool); err != nil {
				s.logger.Errorw("Failed to flag member pool", "error", err, "poolID", mp.ID)
			}
		}
	}

	stored, err := s.pools.FindMembers(ctx)
	if err != nil {
		s.logger.Errorw("Failed to list stored member pools", "error", err)
		return
	}
	for i := range stored {
		if current[stored[i].ID] {
			continue
		}
		stored[i].IsMember = false
		if err := s.pools.Save(ctx, &stored[i]); err != nil {
			s.logger.Errorw("Failed to unflag former member pool", "error", err, "poolID", stored[i].ID)
		}
	}
}

func (s *Service) syncPools(ctx context.Context, lastEpoch *domain.Epoch) {
	members, err := s.pools.FindMembers(ctx)
	if err != nil {
		s.logger.Errorw("Failed to list member pools", "error", err)
		metrics.SyncPassErrors.Inc()
		return
	}

	for i := range members {
		pool := &members[i]

		stepCtx, cancel := context.WithTimeout(ctx, s.cfg.Sync.StepTimeout)
		err := s.poolSyncer.SyncCerts(stepCtx, pool, lastEpoch)
		if err == nil {
			err = s.poolSyncer.SyncInfo(stepCtx, pool, lastEpoch)
		}
		if err == nil {
			err = s.poolSyncer.SyncHistory(stepCtx, pool, lastEpoch)
		}
		cancel()

		if err != nil {
			s.logger.Errorw("Pool sync failed", "error", err, "poolID", pool.ID)
			metrics.SyncPassErrors.Inc()
		}
	}
}

func (s *Service) syncAccounts(ctx context.Context, lastEpoch *domain.Epoch) {
	accounts, err := s.accounts.FindAll(ctx)
	if err != nil {
		s.logger.Errorw("Failed to list accounts", "error", err)
		metrics.SyncPassErrors.Inc()
		return
	}

	for i := range accounts {
		account := &accounts[i]

		stepCtx, cancel := context.WithTimeout(ctx, s.cfg.Sync.StepTimeout)
		err := s.accountSyncer.SyncInfo(stepCtx, account, lastEpoch)
		if err == nil {
			err = s.accountSyncer.SyncWithdrawals(stepCtx, account)
		}
		if err == nil {
			err = s.accountSyncer.SyncMIRs(stepCtx, account)
		}
		if err == nil {
			err = s.historySyncer.Sync(stepCtx, account, lastEpoch)
		}
		cancel()

		if err != nil {
			s.logger.Errorw("Account sync failed", "error", err, "stakeAddress", account.StakeAddress)
			metrics.SyncPassErrors.Inc()
		}
	}
}

func (s *Service) syncSpotPrice(ctx context.Context) {
	price, err := s.prices.GetSpotPrice(ctx, s.cfg.Prices.Currency)
	if err != nil {
		s.logger.Warnw("Spot price unavailable", "error", err)
		return
	}

	day := s.clock.Now().UTC().Truncate(24 * time.Hour)
	spot := &domain.SpotPrice{Day: day, Currency: s.cfg.Prices.Currency, Price: price}
	if err := s.priceRepo.SaveSpotPrice(ctx, spot); err != nil {
		s.logger.Errorw("Failed to store spot price", "error", err)
	}
}
