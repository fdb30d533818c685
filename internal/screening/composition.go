package screening

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/screener/internal/contracts"
)

// DefaultHistogramBins matches the score distribution chart
const DefaultHistogramBins = 20

// GroupShare is one category of a composition breakdown
type GroupShare struct {
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	SharePct float64 `json:"share_pct"`
}

// Breakdown is the composition of the screened subset by one column
type Breakdown struct {
	Column string       `json:"column"`
	Groups []GroupShare `json:"groups"` // count desc, name asc
}

// Top returns the n largest groups
func (b Breakdown) Top(n int) []GroupShare {
	if n < 0 || n > len(b.Groups) {
		n = len(b.Groups)
	}
	return b.Groups[:n]
}

// Composition breaks down a table by every categorical column it carries
func Composition(table *contracts.ScoreTable) []Breakdown {
	out := make([]Breakdown, 0, len(contracts.CategoricalColumns))
	for _, col := range contracts.CategoricalColumns {
		if !table.HasColumn(col) {
			continue
		}
		out = append(out, BreakdownBy(table, col))
	}
	return out
}

// BreakdownBy counts records per value of a column; empty values count as "Unknown"
func BreakdownBy(table *contracts.ScoreTable, column string) Breakdown {
	counts := make(map[string]int)
	for _, r := range table.Records {
		name := r.Cell(column)
		if name == "" {
			name = "Unknown"
		}
		counts[name]++
	}

	groups := make([]GroupShare, 0, len(counts))
	for name, n := range counts {
		groups = append(groups, GroupShare{
			Name:     name,
			Count:    n,
			SharePct: float64(n) / float64(table.Len()) * 100,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Name < groups[j].Name
	})

	return Breakdown{Column: column, Groups: groups}
}

// HistogramBin is one bucket [Lower, Upper); the last bucket is closed
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram buckets scores into equal-width bins between min and max
func Histogram(scores []float64, bins int) []HistogramBin {
	if len(scores) == 0 || bins < 1 {
		return nil
	}

	lo, hi := floats.Min(scores), floats.Max(scores)
	if lo == hi {
		return []HistogramBin{{Lower: lo, Upper: hi, Count: len(scores)}}
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram 은 마지막 경계를 포함하지 않으므로 살짝 넓힘
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	out := make([]HistogramBin, bins)
	for i := range out {
		out[i] = HistogramBin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	out[bins-1].Upper = hi
	return out
}

// Spread is the distribution of one raw criterion over a table
type Spread struct {
	Criterion string  `json:"criterion"`
	Count     int     `json:"count"`
	Min       float64 `json:"min"`
	Q1        float64 `json:"q1"`
	Median    float64 `json:"median"`
	Q3        float64 `json:"q3"`
	Max       float64 `json:"max"`
}

// Spreads summarizes each criterion of table as min / quartiles / max.
// Criteria without any finite value are skipped.
func Spreads(table *contracts.ScoreTable, criteria []string) []Spread {
	out := make([]Spread, 0, len(criteria))
	for _, c := range criteria {
		values := make([]float64, 0, table.Len())
		for _, rec := range table.Records {
			if v, ok := rec.Values[c]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		sort.Float64s(values)
		out = append(out, Spread{
			Criterion: c,
			Count:     len(values),
			Min:       values[0],
			Q1:        stat.Quantile(0.25, stat.Empirical, values, nil),
			Median:    stat.Quantile(0.5, stat.Empirical, values, nil),
			Q3:        stat.Quantile(0.75, stat.Empirical, values, nil),
			Max:       values[len(values)-1],
		})
	}
	return out
}

// Summary is the headline metrics of a screening run
type Summary struct {
	RunID        string         `json:"run_id"`
	Total        int            `json:"total"`
	Retained     int            `json:"retained"`
	Percentile   float64        `json:"percentile"`
	Threshold    float64        `json:"threshold"`
	AverageScore float64        `json:"average_score"`
	Composition  []Breakdown    `json:"composition"`
	Histogram    []HistogramBin `json:"histogram"`
	Criteria     []Spread       `json:"criteria"` // 선별 종목의 기준별 분포
}

// Summarize builds the summary of a run: composition and criterion spreads of
// the retained subset, histogram of all scores
func Summarize(result *Result, bins int) (*Summary, error) {
	scores, err := result.Scored.Scores()
	if err != nil {
		return nil, err
	}

	f := result.Filtered
	return &Summary{
		RunID:        result.RunID,
		Total:        f.Total,
		Retained:     f.Retained,
		Percentile:   f.Percentile,
		Threshold:    f.Threshold,
		AverageScore: f.AverageScore,
		Composition:  Composition(f.Table),
		Histogram:    Histogram(scores, bins),
		Criteria:     Spreads(f.Table, result.Params.Criteria),
	}, nil
}
