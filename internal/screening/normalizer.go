package screening

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/wonny/screener/internal/contracts"
)

// Range is the observed min/max of one criterion
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Degenerate reports a constant column
func (r Range) Degenerate() bool {
	return r.Max == r.Min
}

// Normalized holds min-max rescaled criteria, aligned with table order
// ⭐ SSOT: Stage 1 출력
type Normalized struct {
	Criteria []string             `json:"criteria"`
	Values   map[string][]float64 `json:"values"` // criterion → [record]
	Ranges   map[string]Range     `json:"ranges"`
}

// Record returns the normalized criteria of the i-th record
func (n *Normalized) Record(i int) map[string]float64 {
	out := make(map[string]float64, len(n.Criteria))
	for _, c := range n.Criteria {
		out[c] = n.Values[c][i]
	}
	return out
}

// Normalize rescales each criterion to [0,1] as (v-min)/(max-min).
// A constant column maps every record to 0.
func Normalize(table *contracts.ScoreTable, criteria []string) (*Normalized, error) {
	if err := validateCriteria(table, criteria); err != nil {
		return nil, err
	}

	out := &Normalized{
		Criteria: append([]string(nil), criteria...),
		Values:   make(map[string][]float64, len(criteria)),
		Ranges:   make(map[string]Range, len(criteria)),
	}

	for _, c := range criteria {
		raw := make([]float64, table.Len())
		for i, rec := range table.Records {
			raw[i] = rec.Values[c]
		}

		normalized := make([]float64, len(raw))
		if len(raw) == 0 {
			out.Values[c] = normalized
			continue
		}

		r := Range{Min: floats.Min(raw), Max: floats.Max(raw)}
		out.Ranges[c] = r

		// 상수 컬럼: 판별력이 없으므로 0
		if !r.Degenerate() {
			// 절반으로 나눠 계산: ±1e308 같은 값에서도 max-min 이 Inf 가 되지 않음
			lo := r.Min / 2
			span := r.Max/2 - lo
			for i, v := range raw {
				normalized[i] = (v/2 - lo) / span
			}
		}
		out.Values[c] = normalized
	}

	return out, nil
}

// validateCriteria checks every criterion exists, is numeric and fully populated
func validateCriteria(table *contracts.ScoreTable, criteria []string) error {
	seen := make(map[string]bool, len(criteria))
	for _, c := range criteria {
		if seen[c] {
			return &contracts.InputValidationError{Field: c, Message: "criterion selected more than once"}
		}
		seen[c] = true

		if !table.IsNumeric(c) {
			if table.HasColumn(c) {
				return &contracts.InputValidationError{Field: c, Message: "criterion is not a numeric column"}
			}
			return &contracts.InputValidationError{Field: c, Message: "criterion column does not exist"}
		}

		for _, rec := range table.Records {
			v, ok := rec.Values[c]
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				return &contracts.InputValidationError{
					Field:   c,
					Message: fmt.Sprintf("record %q has no finite value", rec.ID),
				}
			}
		}
	}
	return nil
}
