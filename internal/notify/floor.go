package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dkoval/gemwatch/internal/domain"
)

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// FloorNotifierConfig holds the alert evaluation parameters.
type FloorNotifierConfig struct {
	// Interval between ticks. Fixed, not jittered.
	Interval time.Duration
	// TrashCount is the size of the ranked window.
	TrashCount int
	// HalfFactor and SuperFactor scale the reference floor for the two
	// threshold tiers. SuperFactor must be below HalfFactor.
	HalfFactor  float64
	SuperFactor float64
}

// FloorNotifier watches the cheapest ranked offers and broadcasts tiered
// alerts. Alert decisions are deduplicated durably per item per tier, so a
// restart never re-announces an item; delivery itself is at-least-once.
type FloorNotifier struct {
	bot      Sender
	registry *Registry
	offers   domain.OfferStore
	marks    domain.AlertStore
	itemURL  func(tokenAddress string) string
	cfg      FloorNotifierConfig
	logger   *slog.Logger
}

// NewFloorNotifier creates a FloorNotifier. itemURL renders the public page
// link appended to each alert.
func NewFloorNotifier(
	bot Sender,
	registry *Registry,
	offers domain.OfferStore,
	marks domain.AlertStore,
	itemURL func(tokenAddress string) string,
	cfg FloorNotifierConfig,
	logger *slog.Logger,
) *FloorNotifier {
	return &FloorNotifier{
		bot:      bot,
		registry: registry,
		offers:   offers,
		marks:    marks,
		itemURL:  itemURL,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "notifier")),
	}
}

// Run announces startup to known recipients, then ticks on a fixed interval
// until the context is cancelled. A failed tick is logged, never fatal.
func (n *FloorNotifier) Run(ctx context.Context) error {
	n.announceStartup(ctx)

	ticker := time.NewTicker(n.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := n.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.logger.Error("tick failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			n.logger.Info("notifier stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick evaluates the ranked window once. Per item: the trash tier fires the
// first time the item appears in the window; the half and super tiers fire
// when its effective price drops to the reference floor scaled by the
// configured factors. The reference floor for the cheapest item is the
// second-cheapest price, since its own price is the floor.
func (n *FloorNotifier) Tick(ctx context.Context) error {
	recipients, err := n.registry.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// A Bot API outage must not stop threshold evaluation; the persisted
		// recipient set still gets the alerts.
		n.logger.Warn("recipient refresh failed, using stored set",
			slog.String("error", err.Error()),
		)
		recipients, err = n.registry.Known(ctx)
		if err != nil {
			return err
		}
	}

	offers, err := n.offers.TopByEffectivePrice(ctx, n.cfg.TrashCount)
	if err != nil {
		return fmt.Errorf("notify: ranked query: %w", err)
	}
	if len(offers) == 0 {
		return nil
	}

	effective := make([]float64, 0, len(offers))
	for _, o := range offers {
		eff, ok := o.EffectivePrice()
		if !ok {
			continue
		}
		effective = append(effective, eff)
	}

	floor, second, thresholdsOK := domain.Thresholds(effective)
	if !thresholdsOK {
		n.logger.Debug("fewer than two ranked rows, threshold tiers skipped")
	}

	now := time.Now().UTC()
	for i, offer := range offers {
		eff, ok := offer.EffectivePrice()
		if !ok {
			continue
		}

		n.fire(ctx, recipients, offer, domain.TierTrash, eff, now)

		if !thresholdsOK {
			continue
		}
		ref := floor
		if i == 0 {
			ref = second
		}
		if eff <= ref*n.cfg.HalfFactor {
			n.fire(ctx, recipients, offer, domain.TierHalf, eff, now)
		}
		if eff <= ref*n.cfg.SuperFactor {
			n.fire(ctx, recipients, offer, domain.TierSuper, eff, now)
		}
	}
	return nil
}

// fire marks the (item, tier) pair and, if the mark is new, broadcasts the
// alert. The mark is written before delivery; a send failure to one
// recipient is logged and does not block the others.
func (n *FloorNotifier) fire(ctx context.Context, recipients []domain.Recipient, offer domain.Offer, tier domain.AlertTier, eff float64, now time.Time) {
	isNew, err := n.marks.MarkIfNew(ctx, offer.TokenAddress, tier, now)
	if err != nil {
		n.logger.Error("alert mark failed",
			slog.String("token", offer.TokenAddress),
			slog.String("tier", string(tier)),
			slog.String("error", err.Error()),
		)
		return
	}
	if !isNew {
		return
	}

	text := n.format(offer, tier, eff)
	n.logger.Info("alert fired",
		slog.String("token", offer.TokenAddress),
		slog.String("tier", string(tier)),
		slog.Float64("effective_price", eff),
	)

	for _, rec := range recipients {
		if err := n.bot.Send(ctx, rec.ChatID, text); err != nil {
			n.logger.Warn("delivery failed",
				slog.Int64("chat_id", rec.ChatID),
				slog.String("error", err.Error()),
			)
		}
	}
}

var tierTitles = map[domain.AlertTier]string{
	domain.TierTrash: "New offer in the floor window",
	domain.TierHalf:  "Offer near the floor",
	domain.TierSuper: "Offer well below the floor",
}

func (n *FloorNotifier) format(offer domain.Offer, tier domain.AlertTier, eff float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", tierTitles[tier], offer.Name)
	fmt.Fprintf(&b, "effective price: %.2f\n", eff)
	if offer.SalePrice != nil {
		fmt.Fprintf(&b, "sale price: %.2f\n", *offer.SalePrice)
	}
	if offer.SaleFee != nil {
		fmt.Fprintf(&b, "sale fee: %.2f\n", *offer.SaleFee)
	}
	if offer.RoyaltyAmount != nil {
		fmt.Fprintf(&b, "royalty: %.2f\n", *offer.RoyaltyAmount)
	}
	if offer.FeeTotal != nil {
		fmt.Fprintf(&b, "total fee: %.2f\n", *offer.FeeTotal)
	}
	fmt.Fprintf(&b, "first seen: %s\n", offer.CreatedAt.Format(time.RFC3339))
	if n.itemURL != nil {
		b.WriteString(n.itemURL(offer.TokenAddress))
	}
	return b.String()
}

func (n *FloorNotifier) announceStartup(ctx context.Context) {
	recipients, err := n.registry.Refresh(ctx)
	if err != nil {
		n.logger.Warn("startup announcement skipped", slog.String("error", err.Error()))
		return
	}
	for _, rec := range recipients {
		if err := n.bot.Send(ctx, rec.ChatID, "floor watcher online"); err != nil {
			n.logger.Warn("startup announcement failed",
				slog.Int64("chat_id", rec.ChatID),
				slog.String("error", err.Error()),
			)
		}
	}
}
