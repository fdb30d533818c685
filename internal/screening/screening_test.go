package screening

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

func newTable(t *testing.T, column string, values ...float64) *contracts.ScoreTable {
	t.Helper()
	records := make([]contracts.EntityRecord, len(values))
	for i, v := range values {
		id := string(rune('A' + i))
		records[i] = contracts.EntityRecord{
			ID:         id,
			ShortName:  "Company " + id,
			Values:     map[string]float64{column: v},
			Attributes: map[string]string{contracts.ColumnSector: "Tech"},
		}
	}
	table, err := contracts.NewScoreTable(
		[]string{contracts.ColumnID, contracts.ColumnShortName, contracts.ColumnSector, column},
		[]string{column},
		records,
	)
	require.NoError(t, err)
	return table
}

func twoCriteriaTable(t *testing.T) *contracts.ScoreTable {
	t.Helper()
	records := []contracts.EntityRecord{
		{ID: "A", ShortName: "Alpha", Values: map[string]float64{"a": 1, "b": 50}},
		{ID: "B", ShortName: "Beta", Values: map[string]float64{"a": 4, "b": 10}},
		{ID: "C", ShortName: "Gamma", Values: map[string]float64{"a": 9, "b": 30}},
		{ID: "D", ShortName: "Delta", Values: map[string]float64{"a": 2, "b": 20}},
	}
	table, err := contracts.NewScoreTable(
		[]string{contracts.ColumnID, contracts.ColumnShortName, "a", "b"},
		[]string{"a", "b"},
		records,
	)
	require.NoError(t, err)
	return table
}

func TestNormalize(t *testing.T) {
	t.Run("scenario A", func(t *testing.T) {
		table := newTable(t, "crit", 10, 20, 30)
		n, err := Normalize(table, []string{"crit"})
		require.NoError(t, err)
		assert.Equal(t, []float64{0.0, 0.5, 1.0}, n.Values["crit"])
		assert.Equal(t, Range{Min: 10, Max: 30}, n.Ranges["crit"])
	})

	t.Run("constant column maps to zero", func(t *testing.T) {
		table := newTable(t, "crit", 7, 7, 7)
		n, err := Normalize(table, []string{"crit"})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 0}, n.Values["crit"])
		assert.True(t, n.Ranges["crit"].Degenerate())
	})

	t.Run("values lie in unit interval", func(t *testing.T) {
		table := twoCriteriaTable(t)
		n, err := Normalize(table, []string{"a", "b"})
		require.NoError(t, err)
		for _, c := range []string{"a", "b"} {
			for _, v := range n.Values[c] {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
		// min → 0, max → 1
		assert.Equal(t, 0.0, n.Values["a"][0])
		assert.Equal(t, 1.0, n.Values["a"][2])
		assert.Equal(t, map[string]float64{"a": 0.375, "b": 0}, n.Record(1))
	})

	tests := []struct {
		name     string
		criteria []string
		field    string
	}{
		{name: "unknown column", criteria: []string{"nope"}, field: "nope"},
		{name: "non numeric column", criteria: []string{contracts.ColumnSector}, field: contracts.ColumnSector},
		{name: "duplicate criterion", criteria: []string{"crit", "crit"}, field: "crit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(newTable(t, "crit", 1, 2), tt.criteria)
			var ve *contracts.InputValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	t.Run("extreme finite values stay in unit interval", func(t *testing.T) {
		table := newTable(t, "crit", -1e308, 0, 1e308)
		n, err := Normalize(table, []string{"crit"})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0.5, 1}, n.Values["crit"])

		scored, err := Score(table, n, contracts.WeightConfig{"crit": 1})
		require.NoError(t, err)
		res, err := Filter(scored, 0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, res.Threshold)
		assert.Equal(t, 3, res.Retained)
	})

	t.Run("missing value rejected", func(t *testing.T) {
		_, err := Normalize(newTable(t, "crit", 1, math.NaN()), []string{"crit"})
		var ve *contracts.InputValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Message, `"B"`)
	})
}

func TestScore(t *testing.T) {
	t.Run("scenario A", func(t *testing.T) {
		table := newTable(t, "crit", 10, 20, 30)
		n, err := Normalize(table, []string{"crit"})
		require.NoError(t, err)

		scored, err := Score(table, n, contracts.WeightConfig{"crit": 1.0})
		require.NoError(t, err)
		scores, err := scored.Scores()
		require.NoError(t, err)
		assert.Equal(t, []float64{0.0, 0.5, 1.0}, scores)
		assert.False(t, table.Scored(), "input table must stay unscored")
	})

	t.Run("scenario E zero weight", func(t *testing.T) {
		table := newTable(t, "crit", 10, 20, 30)
		n, err := Normalize(table, []string{"crit"})
		require.NoError(t, err)

		scored, err := Score(table, n, contracts.WeightConfig{"crit": 0.0})
		var nw *contracts.NoWeightError
		require.True(t, errors.As(err, &nw), "got %v", err)
		assert.Nil(t, scored)
		assert.False(t, table.Scored())
	})

	t.Run("no criteria", func(t *testing.T) {
		table := newTable(t, "crit", 10, 20)
		_, err := Score(table, &Normalized{}, contracts.WeightConfig{})
		var nw *contracts.NoWeightError
		assert.True(t, errors.As(err, &nw))
	})

	t.Run("weight ratio invariance", func(t *testing.T) {
		table := twoCriteriaTable(t)
		n, err := Normalize(table, []string{"a", "b"})
		require.NoError(t, err)

		base := contracts.WeightConfig{"a": 1, "b": 2}
		s1, err := Score(table, n, base)
		require.NoError(t, err)

		for _, k := range []float64{2, 0.1, 37.5} {
			s2, err := Score(table, n, base.Scaled(k))
			require.NoError(t, err)
			want, _ := s1.Scores()
			got, _ := s2.Scores()
			assert.InDeltaSlice(t, want, got, 1e-12, "scale %g", k)
		}
	})

	t.Run("zero weight criterion contributes nothing", func(t *testing.T) {
		table := twoCriteriaTable(t)
		n, err := Normalize(table, []string{"a", "b"})
		require.NoError(t, err)

		scored, err := Score(table, n, contracts.WeightConfig{"a": 1, "b": 0})
		require.NoError(t, err)
		got, _ := scored.Scores()
		assert.InDeltaSlice(t, n.Values["a"], got, 1e-12)
	})

	t.Run("deterministic and bounded", func(t *testing.T) {
		records := []contracts.EntityRecord{
			{ID: "A", ShortName: "Alpha", Values: map[string]float64{"a": 0, "b": 0, "c": 0}},
			{ID: "B", ShortName: "Beta", Values: map[string]float64{"a": 1, "b": 1, "c": 1}},
		}
		table, err := contracts.NewScoreTable(
			[]string{contracts.ColumnID, contracts.ColumnShortName, "a", "b", "c"},
			[]string{"a", "b", "c"},
			records,
		)
		require.NoError(t, err)
		n, err := Normalize(table, []string{"a", "b", "c"})
		require.NoError(t, err)

		weights := contracts.WeightConfig{"a": 0.1, "b": 0.2, "c": 0.3}
		seen := make(map[float64]int)
		for i := 0; i < 200; i++ {
			scored, err := Score(table, n, weights)
			require.NoError(t, err)
			scores, _ := scored.Scores()
			seen[scores[1]]++
		}
		assert.Equal(t, map[float64]int{1.0: 200}, seen)
	})

	invalid := []struct {
		name    string
		weights contracts.WeightConfig
	}{
		{name: "negative", weights: contracts.WeightConfig{"a": -1, "b": 1}},
		{name: "nan", weights: contracts.WeightConfig{"a": math.NaN(), "b": 1}},
		{name: "missing", weights: contracts.WeightConfig{"a": 1}},
		{name: "unselected", weights: contracts.WeightConfig{"a": 1, "b": 1, "c": 1}},
	}
	for _, tt := range invalid {
		t.Run("invalid weight "+tt.name, func(t *testing.T) {
			table := twoCriteriaTable(t)
			n, err := Normalize(table, []string{"a", "b"})
			require.NoError(t, err)

			_, err = Score(table, n, tt.weights)
			var ve *contracts.InputValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{1, 4},
		{0.5, 2.5},
		{0.25, 1.75},
		{0.9, 3.7},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Quantile(sorted, tt.q), 1e-12, "q=%g", tt.q)
	}

	assert.Equal(t, 5.0, Quantile([]float64{5}, 0.3))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func scoredTable(t *testing.T, scores ...float64) *contracts.ScoreTable {
	t.Helper()
	table := newTable(t, "crit", scores...)
	scored, err := table.WithScores(scores)
	require.NoError(t, err)
	return scored
}

func TestFilter(t *testing.T) {
	t.Run("scenario B", func(t *testing.T) {
		res, err := Filter(scoredTable(t, 0.0, 0.5, 1.0), 50)
		require.NoError(t, err)
		assert.Equal(t, 0.5, res.Threshold)
		assert.Equal(t, []string{"B", "C"}, res.IDs())
		assert.Equal(t, 2, res.Retained)
		assert.Equal(t, 3, res.Total)
		assert.InDelta(t, 0.75, res.AverageScore, 1e-12)
	})

	t.Run("p=0 retains all", func(t *testing.T) {
		res, err := Filter(scoredTable(t, 0.3, 0.1, 0.9, 0.1), 0)
		require.NoError(t, err)
		assert.Equal(t, 0.1, res.Threshold)
		assert.Equal(t, 4, res.Retained)
	})

	t.Run("p=100 retains ties with max", func(t *testing.T) {
		res, err := Filter(scoredTable(t, 0.9, 0.1, 0.9, 0.5), 100)
		require.NoError(t, err)
		assert.Equal(t, 0.9, res.Threshold)
		assert.Equal(t, []string{"A", "C"}, res.IDs())
	})

	t.Run("retained count is non-increasing in p", func(t *testing.T) {
		table := scoredTable(t, 0.42, 0.1, 0.77, 0.77, 0.3, 0.05, 0.99, 0.6, 0.6, 0.2)
		prev := table.Len()
		for p := 0.0; p <= 100; p += 2.5 {
			res, err := Filter(table, p)
			require.NoError(t, err)
			assert.LessOrEqual(t, res.Retained, prev, "p=%g", p)
			prev = res.Retained
		}
	})

	for _, p := range []float64{-0.1, 100.01, math.NaN()} {
		_, err := Filter(scoredTable(t, 0.1, 0.2), p)
		var re *contracts.RangeError
		assert.True(t, errors.As(err, &re), "p=%g", p)
	}

	t.Run("unscored table", func(t *testing.T) {
		_, err := Filter(newTable(t, "crit", 1, 2), 50)
		var ve *contracts.InputValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("empty table", func(t *testing.T) {
		empty, err := contracts.NewScoreTable(nil, []string{"crit"}, nil)
		require.NoError(t, err)
		_, err = Filter(empty, 50)
		var ce *contracts.ComputationError
		assert.True(t, errors.As(err, &ce))
	})
}

func TestPipeline_Run(t *testing.T) {
	p := NewPipeline(logger.Nop())

	t.Run("scenario A and B end to end", func(t *testing.T) {
		res, err := p.Run(newTable(t, "crit", 10, 20, 30), Params{
			Criteria:   []string{"crit"},
			Weights:    contracts.WeightConfig{"crit": 1},
			Percentile: 50,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.RunID)
		scores, _ := res.Scored.Scores()
		assert.Equal(t, []float64{0, 0.5, 1}, scores)
		assert.Equal(t, []string{"B", "C"}, res.Filtered.IDs())
	})

	t.Run("defaults", func(t *testing.T) {
		res, err := p.Run(twoCriteriaTable(t), Params{Percentile: 0})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, res.Params.Criteria)
		assert.Equal(t, contracts.WeightConfig{"a": 1, "b": 1}, res.Params.Weights)
		assert.Equal(t, 4, res.Filtered.Retained)
	})

	t.Run("scenario E surfaces NoWeightError", func(t *testing.T) {
		_, err := p.Run(newTable(t, "crit", 10, 20, 30), Params{
			Criteria: []string{"crit"},
			Weights:  contracts.WeightConfig{"crit": 0},
		})
		var nw *contracts.NoWeightError
		assert.True(t, errors.As(err, &nw))
	})

	t.Run("no numeric columns", func(t *testing.T) {
		table, err := contracts.NewScoreTable([]string{contracts.ColumnID}, nil,
			[]contracts.EntityRecord{{ID: "A"}})
		require.NoError(t, err)
		_, err = p.Run(table, Params{})
		var ve *contracts.InputValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("repeated runs are independent", func(t *testing.T) {
		table := twoCriteriaTable(t)
		r1, err := p.Run(table, Params{Percentile: 50})
		require.NoError(t, err)
		r2, err := p.Run(table, Params{Percentile: 50})
		require.NoError(t, err)
		assert.NotEqual(t, r1.RunID, r2.RunID)
		assert.Equal(t, r1.Filtered.IDs(), r2.Filtered.IDs())
		assert.False(t, table.Scored())
	})
}

func TestComposition(t *testing.T) {
	records := []contracts.EntityRecord{
		{ID: "A", Attributes: map[string]string{contracts.ColumnSector: "Tech", contracts.ColumnCountry: "US"}},
		{ID: "B", Attributes: map[string]string{contracts.ColumnSector: "Energy", contracts.ColumnCountry: "US"}},
		{ID: "C", Attributes: map[string]string{contracts.ColumnSector: "Tech", contracts.ColumnCountry: "JP"}},
		{ID: "D", Attributes: map[string]string{contracts.ColumnCountry: "DE"}},
	}
	table, err := contracts.NewScoreTable(
		[]string{contracts.ColumnID, contracts.ColumnSector, contracts.ColumnCountry}, nil, records)
	require.NoError(t, err)

	breakdowns := Composition(table)
	require.Len(t, breakdowns, 2)

	sector := breakdowns[0]
	assert.Equal(t, contracts.ColumnSector, sector.Column)
	assert.Equal(t, GroupShare{Name: "Tech", Count: 2, SharePct: 50}, sector.Groups[0])
	assert.Equal(t, []string{"Energy", "Unknown"}, []string{sector.Groups[1].Name, sector.Groups[2].Name})

	country := breakdowns[1]
	assert.Len(t, country.Top(1), 1)
	assert.Equal(t, "US", country.Top(1)[0].Name)
	assert.Len(t, country.Top(10), 3)
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{0, 0.1, 0.5, 0.5, 1.0}, 4)
	require.Len(t, bins, 4)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, 2, bins[2].Count)
	assert.Equal(t, 1, bins[3].Count, "max lands in the last bin")
	assert.Equal(t, 1.0, bins[3].Upper)

	constant := Histogram([]float64{0.3, 0.3}, DefaultHistogramBins)
	require.Len(t, constant, 1)
	assert.Equal(t, 2, constant[0].Count)

	assert.Nil(t, Histogram(nil, 10))
}

func TestSummarize(t *testing.T) {
	res, err := NewPipeline(logger.Nop()).Run(newTable(t, "crit", 10, 20, 30), Params{Percentile: 50})
	require.NoError(t, err)

	sum, err := Summarize(res, DefaultHistogramBins)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Retained)
	assert.Equal(t, 0.5, sum.Threshold)
	assert.Len(t, sum.Histogram, DefaultHistogramBins)
	require.Len(t, sum.Composition, 1)
	assert.Equal(t, 2, sum.Composition[0].Groups[0].Count)

	require.Len(t, sum.Criteria, 1)
	spread := sum.Criteria[0]
	assert.Equal(t, "crit", spread.Criterion)
	assert.Equal(t, 2, spread.Count)
	assert.Equal(t, 20.0, spread.Min)
	assert.Equal(t, 30.0, spread.Max)
}

func TestSpreads(t *testing.T) {
	table := newTable(t, "crit", 5, 1, 4, 2, 3, 8, 7, 6)

	spreads := Spreads(table, []string{"crit", "nope"})
	require.Len(t, spreads, 1)

	s := spreads[0]
	assert.Equal(t, 8, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 8.0, s.Max)
	assert.LessOrEqual(t, s.Min, s.Q1)
	assert.LessOrEqual(t, s.Q1, s.Median)
	assert.LessOrEqual(t, s.Median, s.Q3)
	assert.LessOrEqual(t, s.Q3, s.Max)
	assert.Contains(t, []float64{4, 5}, s.Median)
}

func TestProject(t *testing.T) {
	table := scoredTable(t, 0.2, 0.9, 0.2, 0.5)

	p, err := Project(table, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{contracts.ColumnShortName, contracts.ColumnScore, contracts.ColumnSector}, p.Columns)
	// 점수 내림차순, 동점은 입력 순서 유지
	names := make([]string, len(p.Rows))
	for i, row := range p.Rows {
		names[i] = row[0]
	}
	assert.Equal(t, []string{"Company B", "Company D", "Company A", "Company C"}, names)
	assert.Equal(t, "0.9", p.Rows[0][1])

	var buf bytes.Buffer
	require.NoError(t, p.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "short_name,Composite_Score,gics_1_sector", lines[0])
	assert.Equal(t, "Company B,0.9,Tech", lines[1])

	_, err = Project(table, []string{"missing"})
	assert.Error(t, err)

	_, err = Project(newTable(t, "crit", 1), nil)
	assert.Error(t, err, "unscored table cannot be projected")
}

func TestWriteTableCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTableCSV(&buf, scoredTable(t, 0.1, 0.7)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,short_name,gics_1_sector,crit,Composite_Score", lines[0])
	assert.Equal(t, "B,Company B,Tech,0.7,0.7", lines[1])
}
