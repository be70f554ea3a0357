package analysis

import (
	"math"
	"sort"

	"github.com/jgoulah/gridflex/pkg/models"
)

const (
	MinSensitivity     = 1
	MaxSensitivity     = 5
	DefaultSensitivity = 2

	// madToSigma is the expected MAD/stddev ratio of a normal distribution
	madToSigma = 0.6745
)

// ValidateSensitivity checks that k is within the accepted range
func ValidateSensitivity(k int) error {
	if k < MinSensitivity || k > MaxSensitivity {
		return ErrSensitivityRange
	}
	return nil
}

// ComputeBand derives the modified Z-score band of a monthly series.
// Months within [Lower, Upper] define the adjusted mean and flexibility.
func ComputeBand(series []models.MonthlyAggregate, k int) (models.OutlierBand, error) {
	if err := ValidateSensitivity(k); err != nil {
		return models.OutlierBand{}, err
	}

	band := models.OutlierBand{K: k}
	if len(series) == 0 {
		return band, &ComputationError{Reason: ReasonEmptySeries, Band: band}
	}

	values := Values(series)
	band.Median, band.MAD = medianMAD(values)
	band.ScaledMAD = band.MAD / madToSigma

	spread := float64(k) * band.MAD / madToSigma
	band.Upper = band.Median + spread
	band.Lower = band.Median - spread

	var sum, distance float64
	for _, v := range values {
		if !band.Contains(v) {
			continue
		}
		band.InBand++
		sum += v
		distance += math.Abs(v - band.Median)
	}
	if band.InBand == 0 {
		return band, &ComputationError{Reason: ReasonEmptyBand, Band: band}
	}
	band.AdjustedMean = sum / float64(band.InBand)

	if band.Median == 0 {
		return band, &ComputationError{Reason: ReasonZeroMedian, Band: band}
	}
	meanDistance := distance / float64(band.InBand)
	band.FlexibilityPct = (meanDistance + float64(k)*band.MAD) / band.Median * 100

	return band, nil
}

// InBandMonths returns the months of series that fall within band
func InBandMonths(series []models.MonthlyAggregate, band models.OutlierBand) []models.MonthlyAggregate {
	var out []models.MonthlyAggregate
	for _, m := range series {
		if band.Contains(m.Consumption) {
			out = append(out, m)
		}
	}
	return out
}

// Median returns the median of values; the mean of the two middle values for even counts
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func medianMAD(values []float64) (median, mad float64) {
	median = Median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - median)
	}
	mad = Median(dev)
	return median, mad
}
