package analysis

import (
	"errors"
	"strings"
	"time"

	"github.com/jgoulah/gridflex/internal/loader"
	"github.com/jgoulah/gridflex/pkg/models"
	"go.uber.org/zap"
)

// Outcomes passed to Recorder
const (
	OutcomeOK          = "ok"
	OutcomeLoadError   = "load_error"
	OutcomeComputation = "computation_error"
	OutcomeInvalid     = "invalid"
)

// TableSource provides the consumption table of a workbook sheet
type TableSource interface {
	Get(path, sheet string) (*loader.Table, error)
}

// Recorder receives the outcome and duration of every analysis
type Recorder interface {
	ObserveAnalysis(outcome string, elapsed time.Duration)
}

// Result is everything the presentation layer needs for one company
type Result struct {
	Company      string                    `json:"company"`
	Workbook     string                    `json:"workbook"`
	Sheet        string                    `json:"sheet"`
	Months       []models.MonthlyAggregate `json:"months"`
	InBandMonths []models.MonthlyAggregate `json:"in_band_months"`
	Band         models.OutlierBand        `json:"band"`
	Dropped      int                       `json:"dropped"`
}

// Record converts the result into a storable analysis
func (r *Result) Record() models.Analysis {
	return models.Analysis{
		Company:  r.Company,
		Workbook: r.Workbook,
		Sheet:    r.Sheet,
		Band:     r.Band,
		Months:   r.Months,
		Dropped:  r.Dropped,
	}
}

// Analyzer runs load, aggregation and banding against one workbook sheet
type Analyzer struct {
	source   TableSource
	workbook string
	sheet    string
	logger   *zap.Logger
	recorder Recorder
}

// NewAnalyzer creates an analyzer for the given workbook sheet
func NewAnalyzer(source TableSource, workbook, sheet string, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		source:   source,
		workbook: workbook,
		sheet:    sheet,
		logger:   logger.Named("analysis"),
	}
}

// SetRecorder installs a recorder for analysis outcomes
func (a *Analyzer) SetRecorder(r Recorder) {
	a.recorder = r
}

// Workbook returns the workbook path and sheet name
func (a *Analyzer) Workbook() (string, string) {
	return a.workbook, a.sheet
}

// Companies returns the names a company selector may offer
func (a *Analyzer) Companies() ([]string, error) {
	table, err := a.source.Get(a.workbook, a.sheet)
	if err != nil {
		return nil, err
	}
	return table.Companies(), nil
}

// Analyze computes the monthly series and outlier band for company
func (a *Analyzer) Analyze(company string, k int) (*Result, error) {
	start := time.Now()
	result, err := a.analyze(company, k)
	a.observe(err, time.Since(start))
	return result, err
}

func (a *Analyzer) analyze(company string, k int) (*Result, error) {
	if strings.TrimSpace(company) == "" {
		return nil, ErrNoCompany
	}
	if err := ValidateSensitivity(k); err != nil {
		return nil, err
	}

	table, err := a.source.Get(a.workbook, a.sheet)
	if err != nil {
		return nil, err
	}

	agg := Aggregate(table.Records, company, table.Date1904)
	if agg.Dropped > 0 {
		a.logger.Warn("dropped rows with unparseable dates",
			zap.String("company", company),
			zap.Int("dropped", agg.Dropped),
			zap.Ints("rows", agg.DroppedRows),
		)
	}

	band, err := ComputeBand(agg.Months, k)
	if err != nil {
		a.logger.Info("band computation failed",
			zap.String("company", company),
			zap.Int("k", k),
			zap.Int("months", len(agg.Months)),
			zap.Error(err),
		)
		return nil, err
	}

	a.logger.Debug("computed band",
		zap.String("company", company),
		zap.Int("k", k),
		zap.Float64("median", band.Median),
		zap.Float64("mad", band.MAD),
		zap.Float64("flexibility_pct", band.FlexibilityPct),
	)

	return &Result{
		Company:      company,
		Workbook:     a.workbook,
		Sheet:        a.sheet,
		Months:       agg.Months,
		InBandMonths: InBandMonths(agg.Months, band),
		Band:         band,
		Dropped:      agg.Dropped,
	}, nil
}

func (a *Analyzer) observe(err error, elapsed time.Duration) {
	if a.recorder == nil {
		return
	}
	outcome := OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, loader.ErrDataLoad):
		outcome = OutcomeLoadError
	case errors.Is(err, ErrComputation):
		outcome = OutcomeComputation
	default:
		outcome = OutcomeInvalid
	}
	a.recorder.ObserveAnalysis(outcome, elapsed)
}
