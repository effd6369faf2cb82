package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkoval/gemwatch/internal/domain"
)

// UpdatesSource is the part of the Bot API the registry needs.
type UpdatesSource interface {
	GetUpdates(ctx context.Context, offset int) (chatIDs []int64, nextOffset int, err error)
}

// Registry discovers alert recipients: anyone who has messaged the bot gets
// persisted and receives every subsequent alert. Updates are acknowledged by
// advancing the offset, so a restart never replays old chats as new.
type Registry struct {
	bot    UpdatesSource
	store  domain.RecipientStore
	offset int
	logger *slog.Logger
}

// NewRegistry creates a Registry over the given updates source and store.
func NewRegistry(bot UpdatesSource, store domain.RecipientStore, logger *slog.Logger) *Registry {
	return &Registry{
		bot:    bot,
		store:  store,
		logger: logger.With(slog.String("component", "registry")),
	}
}

// Refresh drains pending updates, persists any newly seen chats, and returns
// the full recipient list.
func (r *Registry) Refresh(ctx context.Context) ([]domain.Recipient, error) {
	chatIDs, next, err := r.bot.GetUpdates(ctx, r.offset)
	if err != nil {
		return nil, fmt.Errorf("notify: refresh recipients: %w", err)
	}
	r.offset = next

	now := time.Now().UTC()
	for _, id := range chatIDs {
		if err := r.store.Add(ctx, id, now); err != nil {
			return nil, fmt.Errorf("notify: persist recipient: %w", err)
		}
		r.logger.Info("recipient registered", slog.Int64("chat_id", id))
	}

	recipients, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: list recipients: %w", err)
	}
	return recipients, nil
}

// Known returns the persisted recipient set without contacting the Bot API.
// Pending updates stay queued for the next successful Refresh.
func (r *Registry) Known(ctx context.Context) ([]domain.Recipient, error) {
	recipients, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: list recipients: %w", err)
	}
	return recipients, nil
}
