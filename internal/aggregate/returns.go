package aggregate

import (
	"fmt"
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// Returns builds equal-weighted cumulative return series for the screened
// basket and the reference universe, anchored at 1.0 the day before start.
func (a *Aggregator) Returns(ids []string, universe *contracts.ReferenceUniverse, table *contracts.TimeSeriesTable, start time.Time) (*contracts.ReturnsComparison, error) {
	if universe == nil {
		return nil, &contracts.InputValidationError{Field: "universe", Message: "no reference universe loaded"}
	}

	portfolio, pw, err := CumulativeReturns(LabelPortfolio, ids, table, start)
	if err != nil {
		return nil, fmt.Errorf("portfolio returns: %w", err)
	}

	reference, rw, err := CumulativeReturns(universe.Name, universe.IDs, table, start)
	if err != nil {
		return nil, fmt.Errorf("reference returns: %w", err)
	}

	warnings := append(pw, rw...)
	a.logWarnings(warnings)

	result := &contracts.ReturnsComparison{
		Start:           portfolio.Points[0].Date.AddDate(0, 0, 1),
		Portfolio:       *portfolio,
		Reference:       *reference,
		ExcessReturnPct: portfolio.TotalReturnPct - reference.TotalReturnPct,
		Warnings:        warnings,
	}

	a.logger.WithFields(map[string]interface{}{
		"start":         result.Start.Format(contracts.DateLayout),
		"first_date":    portfolio.FirstDate.Format(contracts.DateLayout),
		"last_date":     portfolio.LastDate.Format(contracts.DateLayout),
		"portfolio_ids": len(portfolio.Included),
		"reference_ids": len(reference.Included),
		"portfolio_pct": portfolio.TotalReturnPct,
		"reference_pct": reference.TotalReturnPct,
		"warnings":      len(warnings),
	}).Info("Returns aggregation completed")

	return result, nil
}

// CumulativeReturns compounds the per-date basket mean:
// cum[0] = 1.0 (anchor), cum[t] = cum[t-1] * (1 + mean[t]).
// A date with no available values is flagged and carries cum forward.
func CumulativeReturns(label string, ids []string, table *contracts.TimeSeriesTable, start time.Time) (*contracts.CumulativeSeries, []contracts.Warning, error) {
	from, start, err := window(table, start)
	if err != nil {
		return nil, nil, err
	}

	b, err := resolveBasket(label, ids, table)
	if err != nil {
		return nil, nil, err
	}

	rows := table.Len() - from
	points := make([]contracts.CumulativePoint, 0, rows+1)
	points = append(points, contracts.CumulativePoint{
		Date:       start.AddDate(0, 0, -1),
		Cumulative: 1.0,
		Defined:    true,
		Anchor:     true,
	})

	var gaps []time.Time
	daily := make([]float64, 0, rows)
	cum := 1.0
	for i := from; i < table.Len(); i++ {
		date := table.Dates[i]
		mean, n := b.mean(table.Values[i])
		if n == 0 {
			// 평균이 정의되지 않음: 0 으로 간주하지 않고 표시만 함
			gaps = append(gaps, date)
			points = append(points, contracts.CumulativePoint{Date: date, Cumulative: cum})
			continue
		}

		cum *= 1 + mean
		daily = append(daily, mean)
		points = append(points, contracts.CumulativePoint{
			Date:       date,
			Cumulative: cum,
			MeanReturn: floatPtr(mean),
			Available:  n,
			Defined:    true,
		})
	}

	series := &contracts.CumulativeSeries{
		Label:          label,
		Points:         points,
		FirstDate:      table.Dates[from],
		LastDate:       table.LastDate(),
		TotalReturnPct: (cum - 1) * 100,
		Included:       b.included,
		Missing:        b.missing,
		Gaps:           gaps,
		Stats:          Performance(daily),
	}

	return series, collectWarnings(table.Name, b, gaps), nil
}
