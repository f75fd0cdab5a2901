package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

type EpochRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewEpochRepository(db *pgxpool.Pool, logger *logger.Logger) *EpochRepository {
	return &EpochRepository{db: db, logger: logger}
}

func (r *EpochRepository) Create(ctx context.Context, epoch *domain.Epoch) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO epochs (number, start_time, end_time)
		VALUES ($1, $2, $3)
	`

	if _, err := r.db.Exec(ctx, query, epoch.Number, epoch.StartTime, epoch.EndTime); err != nil {
		err = translateErr(err)
		if errors.Is(err, domain.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create epoch %d: %w", epoch.Number, err)
	}

	return nil
}

func (r *EpochRepository) scanOne(ctx context.Context, query string, args ...interface{}) (*domain.Epoch, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	var e domain.Epoch
	err := r.db.QueryRow(ctx, query, args...).Scan(&e.Number, &e.StartTime, &e.EndTime)
	if err != nil {
		return nil, translateErr(err)
	}
	return &e, nil
}

func (r *EpochRepository) FindByNumber(ctx context.Context, number int32) (*domain.Epoch, error) {
	return r.scanOne(ctx, `
		SELECT number, start_time, end_time
		FROM epochs
		WHERE number = $1
	`, number)
}

func (r *EpochRepository) FindLatest(ctx context.Context) (*domain.Epoch, error) {
	return r.scanOne(ctx, `
		SELECT number, start_time, end_time
		FROM epochs
		ORDER BY number DESC
		LIMIT 1
	`)
}

func (r *EpochRepository) FindOneFromTime(ctx context.Context, t time.Time) (*domain.Epoch, error) {
	return r.scanOne(ctx, `
		SELECT number, start_time, end_time
		FROM epochs
		WHERE start_time <= $1 AND end_time >= $1
		ORDER BY number
		LIMIT 1
	`, t)
}

func (r *EpochRepository) FindOneStartAfter(ctx context.Context, t time.Time) (*domain.Epoch, error) {
	return r.scanOne(ctx, `
		SELECT number, start_time, end_time
		FROM epochs
		WHERE start_time >= $1
		ORDER BY start_time
		LIMIT 1
	`, t)
}
