package refdata

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

// Store is the process-wide reference data, loaded once and never mutated
// ⭐ SSOT: 모든 요청이 이 Store 를 읽기 전용으로 공유
type Store struct {
	Returns      *contracts.TimeSeriesTable
	Universe     *contracts.ReferenceUniverse
	Fundamentals map[string]*contracts.TimeSeriesTable
}

// Load reads every reference table from a source
func Load(ctx context.Context, source contracts.ReferenceSource, log *logger.Logger) (*Store, error) {
	returns, err := source.LoadReturns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load returns: %w", err)
	}

	universe, err := source.LoadUniverse(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	fundamentals, err := source.LoadFundamentals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load fundamentals: %w", err)
	}

	store := &Store{
		Returns:      returns,
		Universe:     universe,
		Fundamentals: fundamentals,
	}

	summary := store.Summary()
	log.WithFields(map[string]interface{}{
		"universe":      summary.Universe,
		"constituents":  summary.Constituents,
		"returns_ids":   summary.ReturnsIDs,
		"returns_dates": summary.ReturnsDates,
		"fundamentals":  summary.Fundamentals,
	}).Info("Reference data loaded")

	if summary.UncoveredIDs > 0 {
		log.WithField("uncovered_ids", summary.UncoveredIDs).
			Warn("Some universe constituents have no returns column")
	}

	return store, nil
}

// Metrics returns the loaded fundamental metric names, sorted
func (s *Store) Metrics() []string {
	metrics := make([]string, 0, len(s.Fundamentals))
	for m := range s.Fundamentals {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	return metrics
}

// Fundamental returns one metric's table
func (s *Store) Fundamental(metric string) (*contracts.TimeSeriesTable, error) {
	table, ok := s.Fundamentals[metric]
	if !ok {
		return nil, &contracts.InputValidationError{Field: "metric", Message: fmt.Sprintf("unknown metric %q", metric)}
	}
	return table, nil
}

// Summary describes what was loaded
func (s *Store) Summary() contracts.ReferenceSummary {
	summary := contracts.ReferenceSummary{Fundamentals: s.Metrics()}

	if s.Universe != nil {
		summary.Universe = s.Universe.Name
		summary.Constituents = s.Universe.Count()
	}
	if s.Returns != nil {
		summary.ReturnsIDs = len(s.Returns.IDs)
		summary.ReturnsDates = s.Returns.Len()
		summary.ReturnsFrom = s.Returns.FirstDate()
		summary.ReturnsTo = s.Returns.LastDate()

		if s.Universe != nil {
			for _, id := range s.Universe.IDs {
				if !s.Returns.Has(id) {
					summary.UncoveredIDs++
				}
			}
		}
	}
	return summary
}
