package models

import (
	"fmt"
	"time"
)

// ConsumptionRecord represents a single row of the consumption sheet.
// Date is kept as the raw cell text; parsing happens during aggregation.
type ConsumptionRecord struct {
	Company     string  `json:"company"`
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"` // NaN when the cell was blank
	Row         int     `json:"row"`         // 1-based sheet row
}

// Month identifies a calendar month
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start returns midnight UTC of the first day of the month
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Before reports whether m is earlier than other
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// Label formats the month as YYYY.MM
func (m Month) Label() string {
	return fmt.Sprintf("%04d.%02d", m.Year, int(m.Month))
}

func (m Month) String() string {
	return m.Label()
}

// MarshalText encodes the month as its label
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.Label()), nil
}

// UnmarshalText parses a YYYY.MM label
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMonth parses a YYYY.MM label
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006.01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month label %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// MonthlyAggregate is the summed consumption of one company in one month
type MonthlyAggregate struct {
	Month       Month   `json:"month"`
	Consumption float64 `json:"consumption"`
}

// OutlierBand holds the robust statistics derived from a monthly series
type OutlierBand struct {
	K              int     `json:"k"`
	Median         float64 `json:"median"`
	MAD            float64 `json:"mad"`
	ScaledMAD      float64 `json:"scaled_mad"`
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	AdjustedMean   float64 `json:"adjusted_mean"`
	FlexibilityPct float64 `json:"flexibility_pct"`
	InBand         int     `json:"in_band"`
}

// Contains reports whether v lies within the band, bounds inclusive
func (b OutlierBand) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// Analysis is a stored band computation for one company
type Analysis struct {
	ID        string             `json:"id"`
	Company   string             `json:"company"`
	Workbook  string             `json:"workbook"`
	Sheet     string             `json:"sheet"`
	Band      OutlierBand        `json:"band"`
	Months    []MonthlyAggregate `json:"months"`
	Dropped   int                `json:"dropped"`
	CreatedAt time.Time          `json:"created_at"`
	Published bool               `json:"published"`
}
