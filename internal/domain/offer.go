package domain

import "time"

// NanotonsPerTon is the fixed-point scale of on-site monetary values. Every
// raw price, fee, and royalty amount is divided by this factor to reach TON.
const NanotonsPerTon = 1e9

// Offer is one tracked marketplace item, keyed by its token address. Optional
// numeric fields are pointers so "unset" stays distinguishable from zero.
type Offer struct {
	TokenAddress    string
	Name            string
	SaleContract    *string
	SalePrice       *float64
	SaleFee         *float64
	SaleCurrency    *string
	MaxOfferPrice   *float64
	PrevOwnersCount *int
	LastSalePrice   *float64
	LastSaleDate    *time.Time
	OwnerAddress    string
	RoyaltyAddress  *string
	RoyaltyAmount   *float64
	FeeTotal        *float64
	FullPrice       *float64
	Currency        *string
	SaleType        *string
	NftAddress      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectivePrice is the alert ranking basis: sale price plus sale fee. The
// second return value is false when the offer has no sale price.
func (o Offer) EffectivePrice() (float64, bool) {
	if o.SalePrice == nil {
		return 0, false
	}
	eff := *o.SalePrice
	if o.SaleFee != nil {
		eff += *o.SaleFee
	}
	return eff, true
}

// Detail holds the fields extracted from an item's detail page. All fields
// are optional; a fetch that found no structured block yields the zero value.
type Detail struct {
	RoyaltyAddress *string
	RoyaltyAmount  *float64
	FeeTotal       *float64
	FullPrice      *float64
	Currency       *string
	SaleType       *string
	NftAddress     *string
}

// IsZero reports whether no detail field was extracted.
func (d Detail) IsZero() bool {
	return d == Detail{}
}

// ApplyDetail copies the non-nil detail fields onto the offer, leaving
// previously known values in place where this fetch came back empty.
func (o *Offer) ApplyDetail(d Detail) {
	if d.RoyaltyAddress != nil {
		o.RoyaltyAddress = d.RoyaltyAddress
	}
	if d.RoyaltyAmount != nil {
		o.RoyaltyAmount = d.RoyaltyAmount
	}
	if d.FeeTotal != nil {
		o.FeeTotal = d.FeeTotal
	}
	if d.FullPrice != nil {
		o.FullPrice = d.FullPrice
	}
	if d.Currency != nil {
		o.Currency = d.Currency
	}
	if d.SaleType != nil {
		o.SaleType = d.SaleType
	}
	if d.NftAddress != nil {
		o.NftAddress = d.NftAddress
	}
}

// Merge combines an existing stored offer with a freshly observed one and
// returns the row that should be persisted. Listing-observed fields are taken
// from the incoming offer every time; detail-only fields fall back to the
// existing value when the incoming one is nil, so a failed detail fetch never
// erases known data. CreatedAt is immutable after first write.
func Merge(existing, incoming Offer, now time.Time) Offer {
	out := incoming
	out.CreatedAt = existing.CreatedAt
	out.UpdatedAt = now

	if out.RoyaltyAddress == nil {
		out.RoyaltyAddress = existing.RoyaltyAddress
	}
	if out.RoyaltyAmount == nil {
		out.RoyaltyAmount = existing.RoyaltyAmount
	}
	if out.FeeTotal == nil {
		out.FeeTotal = existing.FeeTotal
	}
	if out.FullPrice == nil {
		out.FullPrice = existing.FullPrice
	}
	if out.Currency == nil {
		out.Currency = existing.Currency
	}
	if out.SaleType == nil {
		out.SaleType = existing.SaleType
	}
	if out.NftAddress == nil {
		out.NftAddress = existing.NftAddress
	}
	return out
}

// FromNanotons converts a raw fixed-point monetary value to TON. Zero and
// negative raw values map to nil, keeping "unset" distinct from "free".
func FromNanotons(raw float64) *float64 {
	if raw <= 0 {
		return nil
	}
	v := raw / NanotonsPerTon
	return &v
}
