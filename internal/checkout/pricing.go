package checkout

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
)

// Quote is the priced breakdown of a single chef's order. All amounts are
// integer cents; fractional intermediate values are rounded half away from
// zero before they land here.
type Quote struct {
	SubtotalCents    int64
	DiscountCents    int64
	TaxCents         int64
	DeliveryFeeCents int64
	ServiceFeeCents  int64
	TotalCents       int64
}

// PromoResolver converts an applied promo code into a discount rate in basis
// points. Unknown codes resolve to zero; promo bookkeeping beyond the rate
// lives outside checkout.
type PromoResolver interface {
	DiscountBps(code string) int64
}

// StaticPromoResolver resolves promo codes from a fixed table.
type StaticPromoResolver map[string]int64

// DefaultPromoResolver carries the standing marketing codes.
func DefaultPromoResolver() StaticPromoResolver {
	return StaticPromoResolver{
		"WELCOME10": 1000,
		"CHEF5":     500,
	}
}

func (r StaticPromoResolver) DiscountBps(code string) int64 {
	return r[strings.ToUpper(strings.TrimSpace(code))]
}

// Pricer computes order totals from configured rates.
type Pricer struct {
	cfg    config.CheckoutConfig
	promos PromoResolver
}

// NewPricer builds a pricer; a nil resolver falls back to the default table.
func NewPricer(cfg config.CheckoutConfig, promos PromoResolver) Pricer {
	if promos == nil {
		promos = DefaultPromoResolver()
	}
	return Pricer{cfg: cfg, promos: promos}
}

// Price quotes one chef order. The best applied promo code wins; codes never
// stack. The delivery fee applies per order since each chef fulfils
// independently, and orders under the small-order floor carry a surcharge
// folded into the service fee.
func (p Pricer) Price(subtotalCents int64, mode enums.DeliveryMode, promoCodes []string) Quote {
	quote := Quote{SubtotalCents: subtotalCents}

	var bestBps int64
	for _, code := range promoCodes {
		if bps := p.promos.DiscountBps(code); bps > bestBps {
			bestBps = bps
		}
	}
	quote.DiscountCents = applyBps(subtotalCents, bestBps)
	if quote.DiscountCents > subtotalCents {
		quote.DiscountCents = subtotalCents
	}

	taxable := subtotalCents - quote.DiscountCents
	quote.TaxCents = applyBps(taxable, int64(p.cfg.TaxRateBps))
	quote.ServiceFeeCents = applyBps(taxable, int64(p.cfg.ServiceFeeBps))
	if subtotalCents < p.cfg.SmallOrderFloor {
		quote.ServiceFeeCents += p.cfg.SmallOrderFee
	}
	if mode == enums.DeliveryModeDelivery {
		quote.DeliveryFeeCents = p.cfg.DeliveryFee
	}

	quote.TotalCents = taxable + quote.TaxCents + quote.DeliveryFeeCents + quote.ServiceFeeCents
	return quote
}

// applyBps multiplies cents by a basis-point rate, rounding half away from
// zero.
func applyBps(cents, bps int64) int64 {
	if cents <= 0 || bps <= 0 {
		return 0
	}
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}
