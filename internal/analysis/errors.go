package analysis

import (
	"errors"
	"fmt"

	"github.com/jgoulah/gridflex/pkg/models"
)

var (
	// ErrComputation is the sentinel matched by every ComputationError
	ErrComputation = errors.New("computation failed")

	// ErrSensitivityRange is returned for k outside [MinSensitivity, MaxSensitivity]
	ErrSensitivityRange = fmt.Errorf("sensitivity must be between %d and %d", MinSensitivity, MaxSensitivity)

	// ErrNoCompany is returned when no company was selected
	ErrNoCompany = errors.New("no company selected")
)

// Reasons reported by ComputationError
const (
	ReasonEmptySeries = "empty series"
	ReasonEmptyBand   = "no months within bounds"
	ReasonZeroMedian  = "median is zero"
)

// ComputationError reports a statistic that is undefined for the given series.
// Band carries whatever was computed before the failure.
type ComputationError struct {
	Reason string
	Band   models.OutlierBand
}

func (e *ComputationError) Error() string {
	return "computing outlier band: " + e.Reason
}

// Is matches ErrComputation
func (e *ComputationError) Is(target error) bool {
	return target == ErrComputation
}
