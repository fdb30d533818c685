package aggregate

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/screener/internal/contracts"
)

// Fundamentals builds plain per-date mean series of one metric for the
// screened basket and the reference universe (no compounding).
func (a *Aggregator) Fundamentals(metric string, ids []string, universe *contracts.ReferenceUniverse, table *contracts.TimeSeriesTable, start time.Time) (*contracts.FundamentalsComparison, error) {
	if universe == nil {
		return nil, &contracts.InputValidationError{Field: "universe", Message: "no reference universe loaded"}
	}
	if table == nil {
		return nil, &contracts.InputValidationError{Field: "metric", Message: fmt.Sprintf("unknown metric %q", metric)}
	}

	portfolio, pw, err := MeanSeries(LabelPortfolio, ids, table, start)
	if err != nil {
		return nil, fmt.Errorf("portfolio %s: %w", metric, err)
	}

	reference, rw, err := MeanSeries(universe.Name, universe.IDs, table, start)
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", metric, err)
	}

	warnings := append(pw, rw...)
	a.logWarnings(warnings)

	a.logger.WithFields(map[string]interface{}{
		"metric":        metric,
		"first_date":    portfolio.FirstDate.Format(contracts.DateLayout),
		"last_date":     portfolio.LastDate.Format(contracts.DateLayout),
		"portfolio_ids": len(portfolio.Included),
		"reference_ids": len(reference.Included),
		"warnings":      len(warnings),
	}).Info("Fundamentals aggregation completed")

	effective := start
	if effective.IsZero() {
		effective = table.FirstDate()
	}

	return &contracts.FundamentalsComparison{
		Metric:    metric,
		Start:     effective,
		Portfolio: *portfolio,
		Reference: *reference,
		Warnings:  warnings,
	}, nil
}

// FundamentalsAll runs Fundamentals for several metrics, in the order given.
// An empty metric list means every loaded metric, sorted by name.
func (a *Aggregator) FundamentalsAll(metrics []string, ids []string, universe *contracts.ReferenceUniverse, tables map[string]*contracts.TimeSeriesTable, start time.Time) ([]contracts.FundamentalsComparison, error) {
	if len(metrics) == 0 {
		for m := range tables {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
	}

	out := make([]contracts.FundamentalsComparison, 0, len(metrics))
	for _, m := range metrics {
		table, ok := tables[m]
		if !ok {
			return nil, &contracts.InputValidationError{Field: "metric", Message: fmt.Sprintf("unknown metric %q", m)}
		}

		cmp, err := a.Fundamentals(m, ids, universe, table, start)
		if err != nil {
			return nil, err
		}
		out = append(out, *cmp)
	}
	return out, nil
}

// MeanSeries computes the per-date basket mean over rows with date >= start.
// Average is the mean of the defined per-date means.
func MeanSeries(label string, ids []string, table *contracts.TimeSeriesTable, start time.Time) (*contracts.MeanSeries, []contracts.Warning, error) {
	from, _, err := window(table, start)
	if err != nil {
		return nil, nil, err
	}

	b, err := resolveBasket(label, ids, table)
	if err != nil {
		return nil, nil, err
	}

	points := make([]contracts.MeanPoint, 0, table.Len()-from)
	defined := make([]float64, 0, table.Len()-from)
	var gaps []time.Time
	for i := from; i < table.Len(); i++ {
		date := table.Dates[i]
		mean, n := b.mean(table.Values[i])
		if n == 0 {
			gaps = append(gaps, date)
			points = append(points, contracts.MeanPoint{Date: date})
			continue
		}

		defined = append(defined, mean)
		points = append(points, contracts.MeanPoint{Date: date, Mean: floatPtr(mean), Available: n})
	}

	series := &contracts.MeanSeries{
		Label:     label,
		Points:    points,
		FirstDate: table.Dates[from],
		LastDate:  table.LastDate(),
		Included:  b.included,
		Missing:   b.missing,
		Gaps:      gaps,
	}
	if len(defined) > 0 {
		series.Average = floatPtr(stat.Mean(defined, nil))
	}

	return series, collectWarnings(table.Name, b, gaps), nil
}
