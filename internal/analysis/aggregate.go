package analysis

import (
	"math"
	"sort"

	"github.com/jgoulah/gridflex/pkg/models"
)

// Aggregation is the monthly series of one company plus the rows left out of it
type Aggregation struct {
	Company string
	Months  []models.MonthlyAggregate
	// Dropped counts rows whose date could not be parsed
	Dropped     int
	DroppedRows []int
}

// Aggregate sums the company's consumption per calendar month, oldest first.
// Rows with unparseable dates are dropped and counted; blank values add nothing.
// date1904 selects the workbook date system used for numeric dates.
func Aggregate(records []models.ConsumptionRecord, company string, date1904 bool) Aggregation {
	agg := Aggregation{Company: company}
	sums := make(map[models.Month]float64)
	dates := NewDateParser(date1904)

	for _, r := range records {
		if r.Company != company {
			continue
		}

		date, err := dates.Parse(r.Date)
		if err != nil {
			agg.Dropped++
			agg.DroppedRows = append(agg.DroppedRows, r.Row)
			continue
		}

		m := models.MonthOf(date)
		if math.IsNaN(r.Consumption) {
			// keep the month even when every value in it is blank
			sums[m] += 0
			continue
		}
		sums[m] += r.Consumption
	}

	agg.Months = sortedMonths(sums)
	return agg
}

// AggregateMonths merges rows that share a month and orders the result.
// Applied to an already aggregated series it returns the same series.
func AggregateMonths(series []models.MonthlyAggregate) []models.MonthlyAggregate {
	sums := make(map[models.Month]float64, len(series))
	for _, m := range series {
		sums[m.Month] += m.Consumption
	}
	return sortedMonths(sums)
}

// Values returns the consumption of each month in order
func Values(series []models.MonthlyAggregate) []float64 {
	values := make([]float64, len(series))
	for i, m := range series {
		values[i] = m.Consumption
	}
	return values
}

func sortedMonths(sums map[models.Month]float64) []models.MonthlyAggregate {
	months := make([]models.MonthlyAggregate, 0, len(sums))
	for m, v := range sums {
		months = append(months, models.MonthlyAggregate{Month: m, Consumption: v})
	}
	sort.Slice(months, func(i, j int) bool {
		return months[i].Month.Before(months[j].Month)
	})
	return months
}
