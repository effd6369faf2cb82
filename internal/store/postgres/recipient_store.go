package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkoval/gemwatch/internal/domain"
)

// RecipientStore implements domain.RecipientStore using PostgreSQL.
type RecipientStore struct {
	pool *pgxpool.Pool
}

// NewRecipientStore creates a new RecipientStore backed by the given pool.
func NewRecipientStore(pool *pgxpool.Pool) *RecipientStore {
	return &RecipientStore{pool: pool}
}

// Add records a recipient. Re-adding an existing chat ID is a no-op.
func (s *RecipientStore) Add(ctx context.Context, chatID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recipients (chat_id, added_at)
		 VALUES ($1, $2)
		 ON CONFLICT (chat_id) DO NOTHING`,
		chatID, at,
	)
	if err != nil {
		return fmt.Errorf("postgres: add recipient %d: %w", chatID, err)
	}
	return nil
}

// List returns every known recipient.
func (s *RecipientStore) List(ctx context.Context) ([]domain.Recipient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT chat_id, added_at FROM recipients ORDER BY added_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var r domain.Recipient
		if err := rows.Scan(&r.ChatID, &r.AddedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: recipient rows: %w", err)
	}
	return recipients, nil
}
