package screening

import (
	"fmt"
	"math"

	"github.com/wonny/screener/internal/contracts"
)

// Score computes Composite_Score = Σ(n[c]·w[c]) / Σw[c] for every record.
// All weight validation happens before any score is written.
// Both sums run in criteria order, so identical inputs give identical scores in [0,1].
func Score(table *contracts.ScoreTable, normalized *Normalized, weights contracts.WeightConfig) (*contracts.ScoreTable, error) {
	if normalized == nil || len(normalized.Criteria) == 0 {
		return nil, &contracts.NoWeightError{}
	}

	if err := validateWeights(normalized.Criteria, weights); err != nil {
		return nil, err
	}

	// 분자와 같은 순서로 합산 (map 순회 순서에 따라 결과가 달라지지 않도록)
	var sum float64
	for _, c := range normalized.Criteria {
		sum += weights[c]
	}
	if sum <= 0 {
		return nil, &contracts.NoWeightError{Criteria: normalized.Criteria, Sum: sum}
	}

	scores := make([]float64, table.Len())
	for i := range table.Records {
		var weighted float64
		for _, c := range normalized.Criteria {
			weighted += normalized.Values[c][i] * weights[c]
		}
		scores[i] = math.Min(math.Max(weighted/sum, 0), 1)
	}

	return table.WithScores(scores)
}

// validateWeights requires exactly one finite, non-negative weight per criterion
func validateWeights(criteria []string, weights contracts.WeightConfig) error {
	selected := make(map[string]bool, len(criteria))
	for _, c := range criteria {
		selected[c] = true

		w, ok := weights[c]
		if !ok {
			return &contracts.InputValidationError{Field: c, Message: "no weight given for criterion"}
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return &contracts.InputValidationError{Field: c, Message: "weight must be finite"}
		}
		if w < 0 {
			return &contracts.InputValidationError{Field: c, Message: fmt.Sprintf("weight must be >= 0, got %g", w)}
		}
	}

	for c := range weights {
		if !selected[c] {
			return &contracts.InputValidationError{Field: c, Message: "weight given for a criterion that is not selected"}
		}
	}
	return nil
}

// DefaultWeights assigns weight 1.0 to every criterion
func DefaultWeights(criteria []string) contracts.WeightConfig {
	w := make(contracts.WeightConfig, len(criteria))
	for _, c := range criteria {
		w[c] = 1.0
	}
	return w
}
