package screening

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/screener/internal/contracts"
)

// FilterResult is the Stage 3 output
// ⭐ SSOT: 스크리닝된 부분집합 (이후 단계는 이 값만 사용)
type FilterResult struct {
	Table        *contracts.ScoreTable `json:"table"`
	Percentile   float64               `json:"percentile"`
	Threshold    float64               `json:"threshold"`
	Retained     int                   `json:"retained"`
	Total        int                   `json:"total"`
	AverageScore float64               `json:"average_score"` // retained 평균
}

// IDs returns the retained record IDs
func (r *FilterResult) IDs() []string {
	return r.Table.IDs()
}

// Quantile estimates the q-th quantile of ascending sorted data by linear
// interpolation between the two bracketing order statistics (h = (n-1)q).
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	h := float64(n-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	v := sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
	return math.Min(v, sorted[i+1])
}

// Filter keeps records with score >= quantile(scores, p/100), order preserved
func Filter(table *contracts.ScoreTable, p float64) (*FilterResult, error) {
	if math.IsNaN(p) || p < 0 || p > 100 {
		return nil, &contracts.RangeError{
			Field: "percentile",
			Value: strconv.FormatFloat(p, 'g', -1, 64),
			Valid: "[0, 100]",
		}
	}

	scores, err := table.Scores()
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, &contracts.ComputationError{Stage: "percentile", Message: "no scored records to filter"}
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	threshold := Quantile(sorted, p/100)

	// 경계 포함 (score == threshold 유지)
	retained := table.Subset(func(r contracts.EntityRecord) bool {
		return *r.Score >= threshold
	})

	kept := make([]float64, 0, retained.Len())
	for _, r := range retained.Records {
		kept = append(kept, *r.Score)
	}

	return &FilterResult{
		Table:        retained,
		Percentile:   p,
		Threshold:    threshold,
		Retained:     retained.Len(),
		Total:        table.Len(),
		AverageScore: stat.Mean(kept, nil),
	}, nil
}
