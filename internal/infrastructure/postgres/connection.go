package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

func NewConnection(cfg *config.Database, logger *logger.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MaxConnIdleTime = cfg.MaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectionTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to PostgreSQL database")

	return pool, nil
}

func RunMigrations(pool *pgxpool.Pool, logger *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS epochs (
			number INTEGER PRIMARY KEY,
			start_time TIMESTAMP WITH TIME ZONE NOT NULL,
			end_time TIMESTAMP WITH TIME ZONE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pools (
			pool_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			ticker TEXT NOT NULL DEFAULT '',
			is_member BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			live_stake BIGINT NOT NULL DEFAULT 0,
			live_delegators BIGINT NOT NULL DEFAULT 0,
			declared_pledge BIGINT NOT NULL DEFAULT 0,
			last_cert_tx_hash TEXT NOT NULL DEFAULT '',
			epoch INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS pool_certs (
			id UUID PRIMARY KEY,
			pool_id TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			active BOOLEAN NOT NULL,
			margin DOUBLE PRECISION NOT NULL DEFAULT 0,
			fixed_fee BIGINT NOT NULL DEFAULT 0,
			reward_account TEXT NOT NULL DEFAULT '',
			owners TEXT[] NOT NULL DEFAULT '{}',
			block BIGINT NOT NULL DEFAULT 0,
			UNIQUE(pool_id, tx_hash)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pool_certs_effective ON pool_certs(pool_id, epoch, block DESC)`,
		`CREATE TABLE IF NOT EXISTS pool_history (
			pool_id TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			rewards BIGINT NOT NULL DEFAULT 0,
			fees BIGINT NOT NULL DEFAULT 0,
			blocks INTEGER NOT NULL DEFAULT 0,
			active_stake BIGINT NOT NULL DEFAULT 0,
			cert_tx_hash TEXT NOT NULL DEFAULT '',
			rewards_revised BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE(pool_id, epoch)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pool_history_unrevised ON pool_history(epoch) WHERE NOT rewards_revised`,
		`CREATE TABLE IF NOT EXISTS accounts (
			stake_address TEXT PRIMARY KEY,
			pool_id TEXT NOT NULL DEFAULT '',
			epoch INTEGER NOT NULL DEFAULT 0,
			rewards_sum BIGINT NOT NULL DEFAULT 0,
			withdrawable BIGINT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			loyalty INTEGER NOT NULL DEFAULT 0,
			mir_last_sync TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS account_history (
			id UUID PRIMARY KEY,
			stake_address TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			active_stake BIGINT NOT NULL DEFAULT 0,
			balance BIGINT NOT NULL DEFAULT 0,
			rewards BIGINT NOT NULL DEFAULT 0,
			revised_rewards BIGINT NOT NULL DEFAULT 0,
			op_rewards BIGINT NOT NULL DEFAULT 0,
			mir BIGINT NOT NULL DEFAULT 0,
			refund BIGINT NOT NULL DEFAULT 0,
			withdrawable BIGINT NOT NULL DEFAULT 0,
			withdrawn BIGINT NOT NULL DEFAULT 0,
			pool_id TEXT NOT NULL DEFAULT '',
			owner BOOLEAN NOT NULL DEFAULT FALSE,
			stake_share DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			UNIQUE(stake_address, epoch)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_history_pool ON account_history(pool_id)`,
		`CREATE TABLE IF NOT EXISTS account_withdrawals (
			id UUID PRIMARY KEY,
			stake_address TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0,
			block_time TIMESTAMP WITH TIME ZONE NOT NULL,
			UNIQUE(stake_address, tx_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS mir_transactions (
			id UUID PRIMARY KEY,
			stake_address TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0,
			block_time TIMESTAMP WITH TIME ZONE NOT NULL,
			UNIQUE(stake_address, tx_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS spot_prices (
			day DATE NOT NULL,
			currency TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			UNIQUE(day, currency)
		)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	logger.Info("Successfully ran database migrations")
	return nil
}

// translateErr maps pgx errors onto the domain error taxonomy.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	return err
}

func queryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 10*time.Second)
}
