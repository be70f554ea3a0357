package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// maxSerial is 9999-12-31 in the 1900 date system
const maxSerial = 2958465

// date1904Offset is the day difference between the 1900 and 1904 systems
const date1904Offset = 1462

// Layouts that read the same regardless of day/month order
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05-07:00",
	"2006/01/02",
	"2006-01",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
}

// Numeric layouts where day and month can be swapped. Month-first is tried
// before day-first for the first date of a series.
var (
	monthFirstLayouts = []string{
		"1/2/2006",
		"01/02/2006",
		"1/2/2006 15:04:05",
		"1/2/06",
		"01-02-06",
	}
	dayFirstLayouts = []string{
		"2/1/2006",
		"02/01/2006",
		"2/1/2006 15:04:05",
		"2/1/06",
		"02-01-06",
	}
)

// DateParser reads the date cells of one series. The first ambiguous text
// date fixes month-first or day-first order for the rest of the series.
type DateParser struct {
	date1904 bool
	order    [][]string
}

// NewDateParser returns a parser for serials in the 1900 or 1904 date system
func NewDateParser(date1904 bool) *DateParser {
	return &DateParser{date1904: date1904}
}

// ParseDate parses a single cell as a 1900-system workbook date
func ParseDate(s string) (time.Time, error) {
	return NewDateParser(false).Parse(s)
}

// Parse parses a date cell. Numbers are read as Excel serials.
func (p *DateParser) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		return p.serial(s, serial)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	orders := p.order
	if orders == nil {
		orders = [][]string{monthFirstLayouts, dayFirstLayouts}
	}
	for _, layouts := range orders {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				p.order = [][]string{layouts}
				return t, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

func (p *DateParser) serial(s string, serial float64) (time.Time, error) {
	limit := float64(maxSerial)
	if p.date1904 {
		limit -= date1904Offset
	}
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial <= 0 || serial > limit {
		return time.Time{}, fmt.Errorf("invalid date serial: %s", s)
	}

	t, err := excelize.ExcelDateToTime(serial, p.date1904)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date serial %s: %w", s, err)
	}
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, fmt.Errorf("date serial %s out of range", s)
	}
	return t, nil
}
