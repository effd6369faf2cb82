package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkoval/gemwatch/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// MarkIfNew records that an alert of the given tier was decided for the
// token. It returns true exactly once per (token, tier): the insert either
// creates the mark or hits the primary key and reports nothing was done.
func (s *AlertStore) MarkIfNew(ctx context.Context, tokenAddress string, tier domain.AlertTier, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO alert_marks (token_address, tier, sent_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (token_address, tier) DO NOTHING`,
		tokenAddress, string(tier), at,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: mark alert %s/%s: %w", tokenAddress, tier, err)
	}
	return tag.RowsAffected() == 1, nil
}
