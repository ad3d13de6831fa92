package service

import (
	"math"

	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

// PriceQuote carries both the system-computed total and the final payable
// total. When an override applies, FinalPence diverges from CalculatedPence;
// the calculated figure is never discarded.
type PriceQuote struct {
	CalculatedPence int64
	FinalPence      int64
	Overridden      bool
}

// ComputeTotal prices a submission. Pure and deterministic, so it is safe to
// call speculatively during validation before anything is committed.
//
// DAY_RATE ignores quantity entirely: total = rate. PER_UNIT multiplies
// quantity by rate, rounding half away from zero to the nearest penny.
func ComputeTotal(model models.PricingModel, quantity *float64, ratePence int64, overridePence *int64) (PriceQuote, error) {
	var calculated int64
	switch model {
	case models.PricingDayRate:
		calculated = ratePence
	case models.PricingPerUnit:
		if quantity == nil {
			return PriceQuote{}, appErrors.ErrQuantityRequired
		}
		if *quantity < 0 {
			return PriceQuote{}, appErrors.ErrInvalidQuantity
		}
		calculated = int64(math.Round(*quantity * float64(ratePence)))
	default:
		return PriceQuote{}, appErrors.Clone(appErrors.ErrValidation, "unsupported pricing model")
	}

	quote := PriceQuote{CalculatedPence: calculated, FinalPence: calculated}
	if overridePence != nil {
		quote.FinalPence = *overridePence
		quote.Overridden = true
	}
	return quote, nil
}
