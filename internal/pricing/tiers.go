package pricing

import (
	"math"
	"time"

	"ms-registration/internal/config"
)

// Tier is the resolved price bracket for a point in time. ValidUntil is nil
// for the open-ended final tier.
type Tier struct {
	Label      string
	Amount     int64
	ValidUntil *time.Time
}

// Quote is a fully priced order amount: base from the tier, tax applied on
// top, all in minor currency units.
type Quote struct {
	Tier        Tier
	BaseAmount  int64
	TaxAmount   int64
	TotalAmount int64
}

// Engine maps timestamps to price tiers. It is pure: the tier table and tax
// rate are fixed at construction and nothing here touches the clock.
type Engine struct {
	tiers       []config.TierConfig
	finalLabel  string
	finalAmount int64
	taxRate     float64
}

func NewEngine(cfg config.PricingConfig) *Engine {
	return &Engine{
		tiers:       cfg.Tiers,
		finalLabel:  cfg.FinalLabel,
		finalAmount: cfg.FinalAmount,
		taxRate:     cfg.TaxRate,
	}
}

// ResolveTier returns the first configured tier whose deadline has not passed
// at now (deadline inclusive), falling back to the open-ended final tier.
func (e *Engine) ResolveTier(now time.Time) Tier {
	for _, tier := range e.tiers {
		if !now.After(tier.Deadline) {
			deadline := tier.Deadline
			return Tier{Label: tier.Label, Amount: tier.Amount, ValidUntil: &deadline}
		}
	}
	return Tier{Label: e.finalLabel, Amount: e.finalAmount}
}

// QuoteAt resolves the tier for now and applies the tax surcharge, rounded to
// the nearest minor unit. This is the authoritative amount for an order; the
// client's displayed price is never trusted.
func (e *Engine) QuoteAt(now time.Time) Quote {
	tier := e.ResolveTier(now)
	tax := int64(math.Round(float64(tier.Amount) * e.taxRate))
	return Quote{
		Tier:        tier,
		BaseAmount:  tier.Amount,
		TaxAmount:   tax,
		TotalAmount: tier.Amount + tax,
	}
}

// TaxOn applies the configured rate to an arbitrary base amount.
func (e *Engine) TaxOn(base int64) int64 {
	return int64(math.Round(float64(base) * e.taxRate))
}
