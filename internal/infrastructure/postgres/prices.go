package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

type PriceRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

func NewPriceRepository(db *pgxpool.Pool, logger *logger.Logger) *PriceRepository {
	return &PriceRepository{db: db, logger: logger}
}

func (r *PriceRepository) SaveSpotPrice(ctx context.Context, price *domain.SpotPrice) error {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO spot_prices (day, currency, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (day, currency) DO UPDATE SET price = EXCLUDED.price
	`
	if _, err := r.db.Exec(ctx, query, price.Day, price.Currency, price.Price); err != nil {
		return fmt.Errorf("failed to save spot price: %w", err)
	}

	return nil
}

func (r *PriceRepository) FindSpotPrice(ctx context.Context, day time.Time, currency string) (*domain.SpotPrice, error) {
	ctx, cancel := queryTimeout(ctx)
	defer cancel()

	var p domain.SpotPrice
	err := r.db.QueryRow(ctx, `
		SELECT day, currency, price
		FROM spot_prices
		WHERE day = $1 AND currency = $2
	`, day, currency).Scan(&p.Day, &p.Currency, &p.Price)
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}
