package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData: the window is too small. Wait for more bars.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrStaleData: newest bar is older than the staleness bound. Refresh.
	ErrStaleData = errors.New("stale data")
	// ErrCalibrationUnavailable: no profile or session data for calibration.
	ErrCalibrationUnavailable = errors.New("calibration unavailable")
	// ErrTransientFetch: retryable bar-source failure.
	ErrTransientFetch = errors.New("transient fetch error")
	// ErrCorruptSnapshot: persisted bar snapshot failed validation.
	ErrCorruptSnapshot = errors.New("corrupt persistent snapshot")
	// ErrDataUnavailable: refresh exhausted its retries this cycle.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrNoSnapshot: nothing was persisted for the symbol.
	ErrNoSnapshot = errors.New("no persisted snapshot")

	ErrPlanNotFound     = errors.New("plan not found")
	ErrPlanTerminal     = errors.New("plan already terminal")
	ErrUnknownCondition = errors.New("unknown condition")
)

// DataError attaches a symbol and detail to one of the sentinel errors.
type DataError struct {
	Kind   error
	Symbol string
	Detail string
}

func (e *DataError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Symbol, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Symbol, e.Kind, e.Detail)
}

func (e *DataError) Unwrap() error { return e.Kind }

// NewDataError builds a DataError with a formatted detail.
func NewDataError(kind error, symbol, format string, args ...interface{}) *DataError {
	return &DataError{Kind: kind, Symbol: symbol, Detail: fmt.Sprintf(format, args...)}
}

// ErrorKind returns a short label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrStaleData):
		return "stale_data"
	case errors.Is(err, ErrCalibrationUnavailable):
		return "calibration_unavailable"
	case errors.Is(err, ErrTransientFetch):
		return "transient_fetch"
	case errors.Is(err, ErrCorruptSnapshot):
		return "corrupt_snapshot"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrPlanNotFound):
		return "plan_not_found"
	case errors.Is(err, ErrPlanTerminal):
		return "plan_terminal"
	case errors.Is(err, ErrUnknownCondition):
		return "unknown_condition"
	default:
		return "internal"
	}
}
