package chart

import (
	"fmt"

	"github.com/jgoulah/gridflex/internal/analysis"
)

// Colors used by the reference lines and bars
const (
	ColorBars  = "blue"
	ColorMean  = "green"
	ColorBound = "red"
)

// Bar is one monthly total
type Bar struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	InBand bool    `json:"in_band"`
}

// Line is a horizontal reference line
type Line struct {
	Label  string  `json:"label"`
	Value  float64 `json:"value"`
	Color  string  `json:"color"`
	Dashed bool    `json:"dashed"`
}

// Spec describes the consumption chart independently of how it is drawn
type Spec struct {
	Title       string `json:"title"`
	XLabel      string `json:"x_label"`
	YLabel      string `json:"y_label"`
	BarLabel    string `json:"bar_label"`
	BarColor    string `json:"bar_color"`
	LegendTitle string `json:"legend_title"`
	Bars        []Bar  `json:"bars"`
	Lines       []Line `json:"lines"`
}

// Build converts an analysis result into a chart spec
func Build(r *analysis.Result) Spec {
	band := r.Band

	bars := make([]Bar, 0, len(r.Months))
	for _, m := range r.Months {
		bars = append(bars, Bar{
			Label:  m.Month.Label(),
			Value:  m.Consumption,
			InBand: band.Contains(m.Consumption),
		})
	}

	return Spec{
		Title:       "Consumption history - " + r.Company,
		XLabel:      "Month",
		YLabel:      "Average total consumption",
		BarLabel:    "Monthly consumption",
		BarColor:    ColorBars,
		LegendTitle: fmt.Sprintf("Estimated flexibility: %.2f%%", band.FlexibilityPct),
		Bars:        bars,
		Lines: []Line{
			{Label: fmt.Sprintf("Adjusted mean: %.2f", band.AdjustedMean), Value: band.AdjustedMean, Color: ColorMean, Dashed: true},
			{Label: fmt.Sprintf("Upper bound (+%d σ): %.2f", band.K, band.Upper), Value: band.Upper, Color: ColorBound, Dashed: true},
			{Label: fmt.Sprintf("Lower bound (-%d σ): %.2f", band.K, band.Lower), Value: band.Lower, Color: ColorBound, Dashed: true},
		},
	}
}
