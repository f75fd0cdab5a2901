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

type AccountRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewAccountRepository(db *pgxpool.Pool, logger *logger.Logger) *AccountRepository {
	return &AccountRepository{db: db, logger: logger}
}

func (r *AccountRepository) Save(ctx context.Context, account *domain.Account) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO accounts (stake_address, pool_id, epoch, rewards_sum,
			withdrawable, active, loyalty, mir_last_sync, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (stake_address) DO UPDATE SET
			pool_id = EXCLUDED.pool_id,
			epoch = EXCLUDED.epoch,
			rewards_sum = EXCLUDED.rewards_sum,
			withdrawable = EXCLUDED.withdrawable,
			active = EXCLUDED.active,
			loyalty = EXCLUDED.loyalty,
			mir_last_sync = EXCLUDED.mir_last_sync
	`
	_, err := r.db.Exec(ctx, query,
		account.StakeAddress, account.PoolID, account.Epoch, account.RewardsSum,
		account.Withdrawable, account.Active, account.Loyalty,
		account.MIRLastSync, account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.StakeAddress, err)
	}

	return nil
}

const accountColumns = `stake_address, pool_id, epoch, rewards_sum, withdrawable,
	active, loyalty, mir_last_sync, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.StakeAddress, &a.PoolID, &a.Epoch, &a.RewardsSum,
		&a.Withdrawable, &a.Active, &a.Loyalty, &a.MIRLastSync, &a.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}

func (r *AccountRepository) FindByAddress(ctx context.Context, stakeAddress string) (*domain.Account, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE stake_address = $1`, stakeAddress)
	return scanAccount(row)
}

func (r *AccountRepository) FindAll(ctx context.Context) ([]domain.Account, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY stake_address`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) FindCorrupted(ctx context.Context) ([]string, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT stake_address
		FROM account_history
		WHERE balance < 0 OR withdrawable < 0 OR revised_rewards < 0 OR op_rewards < 0
		ORDER BY stake_address
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrupted accounts: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("failed to scan stake address: %w", err)
		}
		addresses = append(addresses, addr)
	}
	return addresses, rows.Err()
}

func (r *AccountRepository) CreateHistory(ctx context.Context, history *domain.AccountHistory) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	if history.ID == "" {
		history.ID = uuid.New().String()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO account_history (id, stake_address, epoch, active_stake,
			balance, rewards, revised_rewards, op_rewards, mir, refund,
			withdrawable, withdrawn, pool_id, owner, stake_share, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.Exec(ctx, query,
		history.ID, history.StakeAddress, history.Epoch, history.ActiveStake,
		history.Balance, history.Rewards, history.RevisedRewards, history.OpRewards,
		history.MIR, history.Refund, history.Withdrawable, history.Withdrawn,
		history.PoolID, history.Owner, history.StakeShare, history.CreatedAt,
	)
	if err != nil {
		err = translateErr(err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create account history %s/%d: %w", history.StakeAddress, history.Epoch, err)
	}

	return nil
}

func (r *AccountRepository) SaveHistory(ctx context.Context, history *domain.AccountHistory) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	query := `
		UPDATE account_history
		SET revised_rewards = $3, op_rewards = $4, owner = $5, stake_share = $6
		WHERE stake_address = $1 AND epoch = $2
	`
	tag, err := r.db.Exec(ctx, query,
		history.StakeAddress, history.Epoch, history.RevisedRewards,
		history.OpRewards, history.Owner, history.StakeShare,
	)
	if err != nil {
		return fmt.Errorf("failed to save account history %s/%d: %w", history.StakeAddress, history.Epoch, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

const historyColumns = `id, stake_address, epoch, active_stake, balance, rewards,
	revised_rewards, op_rewards, mir, refund, withdrawable, withdrawn, pool_id,
	owner, stake_share, created_at`

func scanHistory(row pgx.Row) (*domain.AccountHistory, error) {
	var h domain.AccountHistory
	err := row.Scan(&h.ID, &h.StakeAddress, &h.Epoch, &h.ActiveStake, &h.Balance,
		&h.Rewards, &h.RevisedRewards, &h.OpRewards, &h.MIR, &h.Refund,
		&h.Withdrawable, &h.Withdrawn, &h.PoolID, &h.Owner, &h.StakeShare, &h.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &h, nil
}

func (r *AccountRepository) FindHistory(ctx context.Context, stakeAddress string, epoch int32) (*domain.AccountHistory, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+historyColumns+`
		FROM account_history
		WHERE stake_address = $1 AND epoch = $2
	`, stakeAddress, epoch)
	return scanHistory(row)
}

func (r *AccountRepository) FindLastHistory(ctx context.Context, stakeAddress string) (*domain.AccountHistory, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT `+historyColumns+`
		FROM account_history
		WHERE stake_address = $1
		ORDER BY epoch DESC
		LIMIT 1
	`, stakeAddress)
	return scanHistory(row)
}

func (r *AccountRepository) FindAllHistory(ctx context.Context, stakeAddress string) ([]domain.AccountHistory, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+historyColumns+`
		FROM account_history
		WHERE stake_address = $1
		ORDER BY epoch
	`, stakeAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to query account history: %w", err)
	}
	defer rows.Close()

	var histories []domain.AccountHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account history: %w", err)
		}
		histories = append(histories, *h)
	}
	return histories, rows.Err()
}

func (r *AccountRepository) HistoryPools(ctx context.Context, stakeAddress string) ([]string, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT pool_id
		FROM account_history
		WHERE stake_address = $1 AND pool_id <> ''
	`, stakeAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to query history pools: %w", err)
	}
	defer rows.Close()

	var pools []string
	for rows.Next() {
		var poolID string
		if err := rows.Scan(&poolID); err != nil {
			return nil, fmt.Errorf("failed to scan pool id: %w", err)
		}
		pools = append(pools, poolID)
	}
	return pools, rows.Err()
}

func (r *AccountRepository) DeleteHistory(ctx context.Context, stakeAddress string) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM account_history WHERE stake_address = $1`, stakeAddress); err != nil {
		return fmt.Errorf("failed to delete account history for %s: %w", stakeAddress, err)
	}
	return nil
}

func (r *AccountRepository) CreateWithdrawal(ctx context.Context, withdrawal *domain.AccountWithdrawal) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	if withdrawal.ID == "" {
		withdrawal.ID = uuid.New().String()
	}

	query := `
		INSERT INTO account_withdrawals (id, stake_address, tx_hash, epoch, amount, block_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		withdrawal.ID, withdrawal.StakeAddress, withdrawal.TxHash,
		withdrawal.Epoch, withdrawal.Amount, withdrawal.BlockTime,
	)
	if err != nil {
		err = translateErr(err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create withdrawal %s: %w", withdrawal.TxHash, err)
	}

	return nil
}

func (r *AccountRepository) FindWithdrawals(ctx context.Context, stakeAddress string, epoch int32) ([]domain.AccountWithdrawal, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, stake_address, tx_hash, epoch, amount, block_time
		FROM account_withdrawals
		WHERE stake_address = $1 AND epoch = $2
		ORDER BY block_time
	`, stakeAddress, epoch)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []domain.AccountWithdrawal
	for rows.Next() {
		var w domain.AccountWithdrawal
		if err := rows.Scan(&w.ID, &w.StakeAddress, &w.TxHash, &w.Epoch, &w.Amount, &w.BlockTime); err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func (r *AccountRepository) LastWithdrawalTxHash(ctx context.Context, stakeAddress string) (string, error) {
	return r.lastTxHash(ctx, "account_withdrawals", stakeAddress)
}

func (r *AccountRepository) DeleteWithdrawals(ctx context.Context, stakeAddress string) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM account_withdrawals WHERE stake_address = $1`, stakeAddress); err != nil {
		return fmt.Errorf("failed to delete withdrawals for %s: %w", stakeAddress, err)
	}
	return nil
}

func (r *AccountRepository) CreateMIR(ctx context.Context, mir *domain.MIRTransaction) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	if mir.ID == "" {
		mir.ID = uuid.New().String()
	}

	query := `
		INSERT INTO mir_transactions (id, stake_address, tx_hash, epoch, amount, block_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		mir.ID, mir.StakeAddress, mir.TxHash, mir.Epoch, mir.Amount, mir.BlockTime,
	)
	if err != nil {
		err = translateErr(err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create MIR %s: %w", mir.TxHash, err)
	}

	return nil
}

func (r *AccountRepository) FindMIRs(ctx context.Context, stakeAddress string, epoch int32) ([]domain.MIRTransaction, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, stake_address, tx_hash, epoch, amount, block_time
		FROM mir_transactions
		WHERE stake_address = $1 AND epoch = $2
		ORDER BY block_time
	`, stakeAddress, epoch)
	if err != nil {
		return nil, fmt.Errorf("failed to query MIRs: %w", err)
	}
	defer rows.Close()

	var mirs []domain.MIRTransaction
	for rows.Next() {
		var m domain.MIRTransaction
		if err := rows.Scan(&m.ID, &m.StakeAddress, &m.TxHash, &m.Epoch, &m.Amount, &m.BlockTime); err != nil {
			return nil, fmt.Errorf("failed to scan MIR: %w", err)
		}
		mirs = append(mirs, m)
	}
	return mirs, rows.Err()
}

func (r *AccountRepository) LastMIRTxHash(ctx context.Context, stakeAddress string) (string, error) {
	return r.lastTxHash(ctx, "mir_transactions", stakeAddress)
}

func (r *AccountRepository) DeleteMIRs(ctx context.Context, stakeAddress string) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	if _, err := r.db.Exec(ctx, `DELETE FROM mir_transactions WHERE stake_address = $1`, stakeAddress); err != nil {
		return fmt.Errorf("failed to delete MIRs for %s: %w", stakeAddress, err)
	}
	return nil
}

// lastTxHash returns the most recent event tx hash for the account, or ""
// when no events are stored yet.
func (r *AccountRepository) lastTxHash(ctx context.Context, table, stakeAddress string) (string, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	var txHash string
	query := `
		SELECT tx_hash
		FROM ` + table + `
		WHERE stake_address = $1
		ORDER BY block_time DESC
		LIMIT 1
	`
	err := r.db.QueryRow(ctx, query, stakeAddress).Scan(&txHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get last tx hash: %w", err)
	}
	return txHash, nil
}
