package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jgoulah/gridflex/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(values ...float64) []models.MonthlyAggregate {
	out := make([]models.MonthlyAggregate, len(values))
	for i, v := range values {
		out[i] = models.MonthlyAggregate{
			Month:       models.MonthOf(time.Date(2023, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC)),
			Consumption: v,
		}
	}
	return out
}

func TestComputeBand(t *testing.T) {
	tests := []struct {
		name        string
		values      []float64
		k           int
		median      float64
		mad         float64
		lower       float64
		upper       float64
		inBand      int
		mean        float64
		flexibility float64
	}{
		{
			name:   "spike collapses band when MAD is zero",
			values: []float64{100, 100, 100, 100, 1000},
			k:      2,
			median: 100, mad: 0, lower: 100, upper: 100,
			inBand: 4, mean: 100, flexibility: 0,
		},
		{
			name:   "k=1 excludes both tails",
			values: []float64{10, 12, 11, 13, 50},
			k:      1,
			median: 12, mad: 1, lower: 12 - 1/0.6745, upper: 12 + 1/0.6745,
			inBand: 3, mean: 12, flexibility: (2.0/3 + 1) / 12 * 100,
		},
		{
			name:   "k=2 keeps the low month",
			values: []float64{10, 12, 11, 13, 50},
			k:      2,
			median: 12, mad: 1, lower: 12 - 2/0.6745, upper: 12 + 2/0.6745,
			inBand: 4, mean: 11.5, flexibility: 25,
		},
		{
			name:   "even count uses the mean of the middle values",
			values: []float64{4, 1, 3, 2},
			k:      1,
			median: 2.5, mad: 1, lower: 2.5 - 1/0.6745, upper: 2.5 + 1/0.6745,
			inBand: 2, mean: 2.5, flexibility: (0.5 + 1) / 2.5 * 100,
		},
		{
			name:   "single month",
			values: []float64{42},
			k:      3,
			median: 42, mad: 0, lower: 42, upper: 42,
			inBand: 1, mean: 42, flexibility: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band, err := ComputeBand(series(tt.values...), tt.k)
			require.NoError(t, err)

			assert.Equal(t, tt.k, band.K)
			assert.InDelta(t, tt.median, band.Median, 1e-9)
			assert.InDelta(t, tt.mad, band.MAD, 1e-9)
			assert.InDelta(t, tt.mad/0.6745, band.ScaledMAD, 1e-9)
			assert.InDelta(t, tt.lower, band.Lower, 1e-9)
			assert.InDelta(t, tt.upper, band.Upper, 1e-9)
			assert.Equal(t, tt.inBand, band.InBand)
			assert.InDelta(t, tt.mean, band.AdjustedMean, 1e-9)
			assert.InDelta(t, tt.flexibility, band.FlexibilityPct, 1e-9)
			assert.LessOrEqual(t, band.Lower, band.Median)
			assert.LessOrEqual(t, band.Median, band.Upper)
		})
	}
}

func TestComputeBandAllEqual(t *testing.T) {
	s := series(7, 7, 7, 7)
	for k := MinSensitivity; k <= MaxSensitivity; k++ {
		band, err := ComputeBand(s, k)
		require.NoError(t, err)
		assert.Equal(t, 7.0, band.Median)
		assert.Equal(t, 0.0, band.MAD)
		assert.Equal(t, 7.0, band.Lower)
		assert.Equal(t, 7.0, band.Upper)
		assert.Equal(t, len(s), band.InBand)
		assert.Equal(t, 0.0, band.FlexibilityPct)
	}
}

func TestComputeBandWidensWithK(t *testing.T) {
	s := series(120, 95, 130, 80, 400, 110, 5, 101, 99, 250, 87, 140)

	var prev models.OutlierBand
	var prevIn []models.MonthlyAggregate
	for k := MinSensitivity; k <= MaxSensitivity; k++ {
		band, err := ComputeBand(s, k)
		require.NoError(t, err)
		in := InBandMonths(s, band)

		if k > MinSensitivity {
			assert.GreaterOrEqual(t, band.Upper, prev.Upper)
			assert.LessOrEqual(t, band.Lower, prev.Lower)
			assert.GreaterOrEqual(t, band.InBand, prev.InBand)
			for _, m := range prevIn {
				assert.Contains(t, in, m, "k=%d lost month %s", k, m.Month)
			}
		}
		assert.Len(t, in, band.InBand)
		prev, prevIn = band, in
	}
}

func TestComputeBandErrors(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		_, err := ComputeBand(nil, 2)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrComputation))

		var compErr *ComputationError
		require.True(t, errors.As(err, &compErr))
		assert.Equal(t, ReasonEmptySeries, compErr.Reason)
	})

	t.Run("zero median", func(t *testing.T) {
		band, err := ComputeBand(series(0, 0, 0, 5), 2)
		require.Error(t, err)

		var compErr *ComputationError
		require.True(t, errors.As(err, &compErr))
		assert.Equal(t, ReasonZeroMedian, compErr.Reason)
		assert.Equal(t, 3, band.InBand)
		assert.Equal(t, 0.0, compErr.Band.Upper)
	})

	t.Run("sensitivity out of range", func(t *testing.T) {
		for _, k := range []int{-1, 0, 6} {
			_, err := ComputeBand(series(1, 2, 3), k)
			assert.ErrorIs(t, err, ErrSensitivityRange)
			assert.False(t, errors.Is(err, ErrComputation))
		}
	})
}

func TestMedian(t *testing.T) {
	assert.True(t, math.IsNaN(Median(nil)))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{1, 4, 2, 3}))

	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values, "input must not be reordered")
}
