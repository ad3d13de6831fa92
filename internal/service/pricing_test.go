package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mhollis-dev/fieldops-api/internal/models"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

func float64Ptr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64       { return &v }

func TestComputeTotalPerUnit(t *testing.T) {
	// 25.5 units at 45.00 per unit comes to 1147.50.
	quote, err := ComputeTotal(models.PricingPerUnit, float64Ptr(25.5), 4500, nil)
	require.NoError(t, err)
	require.Equal(t, int64(114750), quote.CalculatedPence)
	require.Equal(t, int64(114750), quote.FinalPence)
	require.False(t, quote.Overridden)
}

func TestComputeTotalPerUnitRounding(t *testing.T) {
	// 1.333 * 100 = 133.3, rounds to 133.
	quote, err := ComputeTotal(models.PricingPerUnit, float64Ptr(1.333), 100, nil)
	require.NoError(t, err)
	require.Equal(t, int64(133), quote.CalculatedPence)

	// .5 rounds away from zero.
	quote, err = ComputeTotal(models.PricingPerUnit, float64Ptr(0.5), 101, nil)
	require.NoError(t, err)
	require.Equal(t, int64(51), quote.CalculatedPence)
}

func TestComputeTotalDayRateIgnoresQuantity(t *testing.T) {
	quote, err := ComputeTotal(models.PricingDayRate, float64Ptr(99), 22000, nil)
	require.NoError(t, err)
	require.Equal(t, int64(22000), quote.CalculatedPence)

	quote, err = ComputeTotal(models.PricingDayRate, nil, 22000, nil)
	require.NoError(t, err)
	require.Equal(t, int64(22000), quote.FinalPence)
}

func TestComputeTotalPerUnitQuantityRequired(t *testing.T) {
	_, err := ComputeTotal(models.PricingPerUnit, nil, 4500, nil)
	require.True(t, appErrors.HasCode(err, appErrors.ErrQuantityRequired))

	_, err = ComputeTotal(models.PricingPerUnit, float64Ptr(-1), 4500, nil)
	require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidQuantity))
}

func TestComputeTotalOverrideRetainsCalculated(t *testing.T) {
	quote, err := ComputeTotal(models.PricingPerUnit, float64Ptr(25.5), 4500, int64Ptr(127500))
	require.NoError(t, err)
	require.Equal(t, int64(114750), quote.CalculatedPence)
	require.Equal(t, int64(127500), quote.FinalPence)
	require.True(t, quote.Overridden)
}

func TestComputeTotalUnknownModel(t *testing.T) {
	_, err := ComputeTotal(models.PricingModel("HOURLY"), float64Ptr(1), 100, nil)
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}
