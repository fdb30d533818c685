package aggregate

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

// Series labels
const (
	LabelPortfolio = "portfolio"
	LabelReference = "reference"
)

// Aggregator implements Stage 4 and 5: equal-weighted basket series
// ⭐ SSOT: 참조 데이터는 읽기만 함 (락 불필요)
type Aggregator struct {
	logger *logger.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(logger *logger.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// basket is a requested ID set resolved against one table's columns
type basket struct {
	label    string
	columns  []int
	included []string
	missing  []string
}

// resolveBasket keeps present IDs (first occurrence order) and records absent ones
func resolveBasket(label string, ids []string, table *contracts.TimeSeriesTable) (basket, error) {
	b := basket{label: label}
	if len(ids) == 0 {
		return b, &contracts.InputValidationError{Field: label, Message: "no IDs requested"}
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if col, ok := table.ColumnIndex(id); ok {
			b.columns = append(b.columns, col)
			b.included = append(b.included, id)
		} else {
			b.missing = append(b.missing, id)
		}
	}

	if len(b.columns) == 0 {
		return b, &contracts.ComputationError{
			Stage:   table.Name,
			Message: fmt.Sprintf("none of the %d requested %s IDs exist in %s", len(b.missing), label, table.Name),
		}
	}
	return b, nil
}

// alignmentWarning reports IDs excluded from the basket
func (b basket) alignmentWarning(series string) (contracts.Warning, bool) {
	if len(b.missing) == 0 {
		return contracts.Warning{}, false
	}
	err := &contracts.DataAlignmentError{Series: fmt.Sprintf("%s (%s)", series, b.label), MissingIDs: b.missing}
	return contracts.NewWarning(contracts.WarnMissingIDs, err), true
}

// mean averages the available (non-NaN) cells of a row over the basket
func (b basket) mean(row []float64) (float64, int) {
	values := make([]float64, 0, len(b.columns))
	for _, col := range b.columns {
		if math.IsNaN(row[col]) {
			continue
		}
		values = append(values, row[col])
	}
	if len(values) == 0 {
		return 0, 0
	}
	return stat.Mean(values, nil), len(values)
}

// window returns the first row index at or after start.
// A zero start means the whole table.
func window(table *contracts.TimeSeriesTable, start time.Time) (int, time.Time, error) {
	if table == nil || table.Len() == 0 {
		return 0, start, &contracts.ComputationError{Stage: "aggregate", Message: "reference table is empty"}
	}
	if start.IsZero() {
		start = table.FirstDate()
	}

	from := table.StartIndex(start)
	if from >= table.Len() {
		return 0, start, &contracts.RangeError{
			Field: "start_date",
			Value: start.Format(contracts.DateLayout),
			Valid: fmt.Sprintf("on or before %s (last date in %s)", table.LastDate().Format(contracts.DateLayout), table.Name),
		}
	}
	return from, start, nil
}

// gapWarning reports dates whose basket mean is undefined
func gapWarning(series, label string, gaps []time.Time) (contracts.Warning, bool) {
	if len(gaps) == 0 {
		return contracts.Warning{}, false
	}
	err := &contracts.ComputationError{
		Stage:   series,
		Message: fmt.Sprintf("%s mean undefined on %d date(s): no available values", label, len(gaps)),
		Dates:   gaps,
	}
	return contracts.NewWarning(contracts.WarnUndefinedMean, err), true
}

// collectWarnings gathers alignment and gap warnings for one basket
func collectWarnings(series string, b basket, gaps []time.Time) []contracts.Warning {
	var out []contracts.Warning
	if w, ok := b.alignmentWarning(series); ok {
		out = append(out, w)
	}
	if w, ok := gapWarning(series, b.label, gaps); ok {
		out = append(out, w)
	}
	return out
}

func (a *Aggregator) logWarnings(warnings []contracts.Warning) {
	for _, w := range warnings {
		a.logger.WithFields(map[string]interface{}{
			"code": w.Code,
		}).Warn(w.Message)
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
