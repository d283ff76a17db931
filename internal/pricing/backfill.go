package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/donationwatch/internal/observability/metrics"
	"github.com/pendergraft/donationwatch/internal/storage"
)

// Rounding used for stored valuations: USD amounts keep 3 decimal places,
// ETH amounts keep 6.
const (
	usdPlaces = 3
	ethPlaces = 6
)

// DonationStore defines the donation operations needed by the backfill.
type DonationStore interface {
	ListDonationsMissingPrice(ctx context.Context, currencies []string) ([]Donation, error)
	UpdateDonationValuation(ctx context.Context, id string, priceUsd, priceEth, valueUsd, valueEth float64) error
}

// Donation is re-exported for interface ergonomics.
type Donation = storage.Donation

// Backfill repairs price and value fields for donations that were recorded
// before a reliable quote existed. It never touches donation status.
type Backfill struct {
	store      DonationStore
	oracle     Oracle
	currencies []string
	logger     *slog.Logger
}

// NewBackfill creates a backfill job over the given currencies.
func NewBackfill(store DonationStore, oracle Oracle, currencies []string, logger *slog.Logger) *Backfill {
	return &Backfill{
		store:      store,
		oracle:     oracle,
		currencies: currencies,
		logger:     logger,
	}
}

// Run executes one backfill pass. Each donation is handled independently: a
// failed quote or write is logged and skipped, and the donation stays
// eligible for the next pass. Only listing failures abort the pass.
func (b *Backfill) Run(ctx context.Context) error {
	donations, err := b.store.ListDonationsMissingPrice(ctx, b.currencies)
	if err != nil {
		return fmt.Errorf("listing donations missing price: %w", err)
	}
	if len(donations) == 0 {
		b.logger.Debug("no donations missing price", "currencies", b.currencies)
		return nil
	}
	b.logger.Info("price backfill started",
		"donations", len(donations),
		"currencies", b.currencies,
	)

	var repaired int
	for i := range donations {
		d := &donations[i]
		if ctx.Err() != nil {
			return ctx.Err()
		}

		price, err := b.oracle.HistoricPrice(ctx, d.TxHash, d.NetworkID)
		if err != nil {
			b.logger.Warn("historic price lookup failed",
				"donationId", d.ID,
				"txHash", d.TxHash,
				"error", err,
			)
			metrics.RecordBackfillItem("quote_failed")
			continue
		}

		priceUsd := ToFixed(price.AssetPriceInUsd, usdPlaces)
		priceEth := ToFixed(price.AssetPriceInEth, ethPlaces)
		valueUsd := ToFixed(d.Amount*price.AssetPriceInUsd, usdPlaces)
		valueEth := ToFixed(d.Amount*price.AssetPriceInEth, ethPlaces)

		if err := b.store.UpdateDonationValuation(ctx, d.ID, priceUsd, priceEth, valueUsd, valueEth); err != nil {
			b.logger.Warn("valuation update failed",
				"donationId", d.ID,
				"error", err,
			)
			metrics.RecordBackfillItem("write_failed")
			continue
		}
		metrics.RecordBackfillItem("repaired")
		repaired++
	}

	b.logger.Info("price backfill finished",
		"donations", len(donations),
		"repaired", repaired,
	)
	return nil
}
