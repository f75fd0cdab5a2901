package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

type PoolRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewPoolRepository(db *pgxpool.Pool, logger *logger.Logger) *PoolRepository {
	return &PoolRepository{db: db, logger: logger}
}

func (r *PoolRepository) Save(ctx context.Context, pool *domain.Pool) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	pool.UpdatedAt = time.Now()

	query := `
		INSERT INTO pools (pool_id, name, ticker, is_member, active, live_stake,
			live_delegators, declared_pledge, last_cert_tx_hash, epoch, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (pool_id) DO UPDATE SET
			name = EXCLUDED.name,
			ticker = EXCLUDED.ticker,
			is_member = EXCLUDED.is_member,
			active = EXCLUDED.active,
			live_stake = EXCLUDED.live_stake,
			live_delegators = EXCLUDED.live_delegators,
			declared_pledge = EXCLUDED.declared_pledge,
			last_cert_tx_hash = EXCLUDED.last_cert_tx_hash,
			epoch = EXCLUDED.epoch,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		pool.ID, pool.Name, pool.Ticker, pool.IsMember, pool.Active,
		pool.LiveStake, pool.LiveDelegators, pool.DeclaredPledge,
		pool.LastCertTxHash, pool.Epoch, pool.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save pool %s: %w", pool.ID, err)
	}

	return nil
}

const poolColumns = `pool_id, name, ticker, is_member, active, live_stake,
	live_delegators, declared_pledge, last_cert_tx_hash, epoch, updated_at`

func scanPool(row pgx.Row) (*domain.Pool, error) {
	var p domain.Pool
	err := row.Scan(&p.ID, &p.Name, &p.Ticker, &p.IsMember, &p.Active,
		&p.LiveStake, &p.LiveDelegators, &p.DeclaredPledge,
		&p.LastCertTxHash, &p.Epoch, &p.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (r *PoolRepository) FindByID(ctx context.Context, poolID string) (*domain.Pool, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE pool_id = $1`, poolID)
	return scanPool(row)
}

func (r *PoolRepository) findMany(ctx context.Context, query string, args ...interface{}) ([]domain.Pool, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool: %w", err)
		}
		pools = append(pools, *p)
	}
	return pools, rows.Err()
}

func (r *PoolRepository) FindAll(ctx context.Context) ([]domain.Pool, error) {
	return r.findMany(ctx, `SELECT `+poolColumns+` FROM pools ORDER BY pool_id`)
}

func (r *PoolRepository) FindMembers(ctx context.Context) ([]domain.Pool, error) {
	return r.findMany(ctx, `SELECT `+poolColumns+` FROM pools WHERE is_member ORDER BY pool_id`)
}

// CreateCert inserts the certificate together with stub accounts for its
// owners and reward account, in one transaction so a cert never exists
// without its referenced accounts.
func (r *PoolRepository) CreateCert(ctx context.Context, cert *domain.PoolCert) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(context.Background())

	query := `
		INSERT INTO pool_certs (id, pool_id, tx_hash, epoch, active, margin,
			fixed_fee, reward_account, owners, block)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, query,
		cert.ID, cert.PoolID, cert.TxHash, cert.Epoch, cert.Active,
		cert.Margin, cert.FixedFee, cert.RewardAccount, cert.Owners, cert.Block,
	)
	if err != nil {
		err = translateErr(err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create cert %s: %w", cert.TxHash, err)
	}

	stubQuery := `
		INSERT INTO accounts (stake_address)
		VALUES ($1)
		ON CONFLICT (stake_address) DO NOTHING
	`
	for _, addr := range cert.Stakeholders() {
		if _, err := tx.Exec(ctx, stubQuery, addr); err != nil {
			return fmt.Errorf("failed to create stub account %s: %w", addr, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cert transaction: %w", err)
	}

	return nil
}

const certColumns = `id, pool_id, tx_hash, epoch, active, margin, fixed_fee,
	reward_account, owners, block`

func scanCert(row pgx.Row) (*domain.PoolCert, error) {
	var c domain.PoolCert
	err := row.Scan(&c.ID, &c.PoolID, &c.TxHash, &c.Epoch, &c.Active,
		&c.Margin, &c.FixedFee, &c.RewardAccount, &c.Owners, &c.Block)
	if err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (r *PoolRepository) FindCert(ctx context.Context, poolID, txHash string) (*domain.PoolCert, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+certColumns+`
		FROM pool_certs
		WHERE pool_id = $1 AND tx_hash = $2
	`, poolID, txHash)
	return scanCert(row)
}

func (r *PoolRepository) FindLastCert(ctx context.Context, poolID string) (*domain.PoolCert, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+certColumns+`
		FROM pool_certs
		WHERE pool_id = $1
		ORDER BY block DESC
		LIMIT 1
	`, poolID)
	return scanCert(row)
}

func (r *PoolRepository) FindCertAt(ctx context.Context, poolID string, untilEpoch int32) (*domain.PoolCert, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+certColumns+`
		FROM pool_certs
		WHERE pool_id = $1 AND epoch <= $2
		ORDER BY block DESC
		LIMIT 1
	`, poolID, untilEpoch)
	return scanCert(row)
}

func (r *PoolRepository) CreateHistory(ctx context.Context, history *domain.PoolHistory) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO pool_history (pool_id, epoch, rewards, fees, blocks,
			active_stake, cert_tx_hash, rewards_revised)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		history.PoolID, history.Epoch, history.Rewards, history.Fees,
		history.Blocks, history.ActiveStake, history.CertTxHash, history.RewardsRevised,
	)
	if err != nil {
		err = translateErr(err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create pool history %s/%d: %w", history.PoolID, history.Epoch, err)
	}

	return nil
}

func (r *PoolRepository) SaveHistory(ctx context.Context, history *domain.PoolHistory) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	query := `
		UPDATE pool_history
		SET rewards = $3, fees = $4, blocks = $5, active_stake = $6,
			cert_tx_hash = $7, rewards_revised = $8
		WHERE pool_id = $1 AND epoch = $2
	`
	tag, err := r.db.Exec(ctx, query,
		history.PoolID, history.Epoch, history.Rewards, history.Fees,
		history.Blocks, history.ActiveStake, history.CertTxHash, history.RewardsRevised,
	)
	if err != nil {
		return fmt.Errorf("failed to save pool history %s/%d: %w", history.PoolID, history.Epoch, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

const poolHistoryColumns = `pool_id, epoch, rewards, fees, blocks, active_stake,
	cert_tx_hash, rewards_revised`

func scanPoolHistory(row pgx.Row) (*domain.PoolHistory, error) {
	var h domain.PoolHistory
	err := row.Scan(&h.PoolID, &h.Epoch, &h.Rewards, &h.Fees, &h.Blocks,
		&h.ActiveStake, &h.CertTxHash, &h.RewardsRevised)
	if err != nil {
		return nil, translateErr(err)
	}
	return &h, nil
}

func (r *PoolRepository) FindHistory(ctx context.Context, poolID string, epoch int32) (*domain.PoolHistory, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+poolHistoryColumns+`
		FROM pool_history
		WHERE pool_id = $1 AND epoch = $2
	`, poolID, epoch)
	return scanPoolHistory(row)
}

func (r *PoolRepository) FindLastHistory(ctx context.Context, poolID string) (*domain.PoolHistory, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+poolHistoryColumns+`
		FROM pool_history
		WHERE pool_id = $1
		ORDER BY epoch DESC
		LIMIT 1
	`, poolID)
	return scanPoolHistory(row)
}

func (r *PoolRepository) FindAllHistory(ctx context.Context, poolID string) ([]domain.PoolHistory, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+poolHistoryColumns+`
		FROM pool_history
		WHERE pool_id = $1
		ORDER BY epoch
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool history: %w", err)
	}
	defer rows.Close()

	var histories []domain.PoolHistory
	for rows.Next() {
		h, err := scanPoolHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool history: %w", err)
		}
		histories = append(histories, *h)
	}
	return histories, rows.Err()
}

func (r *PoolRepository) FindUnrevised(ctx context.Context, maxEpoch int32) ([]domain.PoolHistory, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+poolHistoryColumns+`
		FROM pool_history
		WHERE NOT rewards_revised AND epoch <= $1
		ORDER BY epoch
	`, maxEpoch)
	if err != nil {
		return nil, fmt.Errorf("failed to query unrevised pool history: %w", err)
	}
	defer rows.Close()

	var histories []domain.PoolHistory
	for rows.Next() {
		h, err := scanPoolHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool history: %w", err)
		}
		histories = append(histories, *h)
	}
	return histories, rows.Err()
}

func (r *PoolRepository) ResetRevised(ctx context.Context, poolIDs []string) error {
	if len(poolIDs) == 0 {
		return nil
	}

	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	query := `
		UPDATE pool_history
		SET rewards_revised = FALSE
		WHERE pool_id = ANY($1)
	`
	if _, err := r.db.Exec(ctx, query, poolIDs); err != nil {
		return fmt.Errorf("failed to reset revised flags: %w", err)
	}

	return nil
}
