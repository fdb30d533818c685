package contracts

import (
	"fmt"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════
// Error taxonomy
// 검증 에러는 파생 컬럼이 쓰이기 전에 반환된다 (fail fast)
// ═══════════════════════════════════════════════════════════

// InputValidationError reports a missing/invalid input field
type InputValidationError struct {
	Field   string
	Message string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("input validation: %s: %s", e.Field, e.Message)
}

// NoWeightError is returned when a composite score is requested with no
// criteria or a zero weight sum
type NoWeightError struct {
	Criteria []string
	Sum      float64
}

func (e *NoWeightError) Error() string {
	if len(e.Criteria) == 0 {
		return "no weight: no criteria selected"
	}
	return fmt.Sprintf("no weight: total weight %g over criteria [%s] must be > 0",
		e.Sum, strings.Join(e.Criteria, ", "))
}

// RangeError reports a parameter outside its valid domain
type RangeError struct {
	Field string
	Value string
	Valid string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("out of range: %s=%s (valid: %s)", e.Field, e.Value, e.Valid)
}

// DataAlignmentError lists requested IDs absent from a reference series.
// Aggregators return it as a warning, never as a failure.
type DataAlignmentError struct {
	Series     string
	MissingIDs []string
}

func (e *DataAlignmentError) Error() string {
	return fmt.Sprintf("data alignment: %d id(s) missing from %s: %s",
		len(e.MissingIDs), e.Series, strings.Join(e.MissingIDs, ", "))
}

// ComputationError reports inputs that leave a statistic undefined
type ComputationError struct {
	Stage   string
	Message string
	Dates   []time.Time
}

func (e *ComputationError) Error() string {
	if len(e.Dates) == 0 {
		return fmt.Sprintf("computation (%s): %s", e.Stage, e.Message)
	}

	dates := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		dates = append(dates, d.Format(DateLayout))
	}
	return fmt.Sprintf("computation (%s): %s [%s]", e.Stage, e.Message, strings.Join(dates, ", "))
}

// Warning is a non-fatal condition carried on a result
type Warning struct {
	Code    string `json:"code"` // "missing_ids", "undefined_mean"
	Message string `json:"message"`
}

// Warning codes
const (
	WarnMissingIDs    = "missing_ids"
	WarnUndefinedMean = "undefined_mean"
)

// NewWarning converts a recoverable error into a Warning
func NewWarning(code string, err error) Warning {
	return Warning{Code: code, Message: err.Error()}
}
