package contracts

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []EntityRecord {
	return []EntityRecord{
		{ID: "A", ShortName: "Alpha", Values: map[string]float64{"roe": 10}, Attributes: map[string]string{ColumnSector: "Tech"}},
		{ID: "B", ShortName: "Beta", Values: map[string]float64{"roe": 20}, Attributes: map[string]string{ColumnSector: "Energy"}},
		{ID: "C", ShortName: "Gamma", Values: map[string]float64{"roe": math.NaN()}},
	}
}

func TestNewScoreTable(t *testing.T) {
	tests := []struct {
		name    string
		records []EntityRecord
		wantErr bool
	}{
		{name: "unique ids", records: sampleRecords()},
		{name: "empty table", records: nil},
		{
			name: "duplicate id",
			records: []EntityRecord{
				{ID: "A", ShortName: "Alpha"},
				{ID: "A", ShortName: "Alpha again"},
			},
			wantErr: true,
		},
		{
			name:    "empty id",
			records: []EntityRecord{{ShortName: "Nameless"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewScoreTable([]string{ColumnID, ColumnShortName, "roe"}, []string{"roe"}, tt.records)
			if tt.wantErr {
				var ve *InputValidationError
				require.True(t, errors.As(err, &ve), "expected InputValidationError, got %v", err)
				assert.Equal(t, ColumnID, ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.records), table.Len())
		})
	}
}

func TestScoreTable_WithScores(t *testing.T) {
	table, err := NewScoreTable([]string{ColumnID, ColumnShortName, "roe"}, []string{"roe"}, sampleRecords())
	require.NoError(t, err)
	assert.False(t, table.Scored())

	scored, err := table.WithScores([]float64{0.1, 0.9, 0.5})
	require.NoError(t, err)

	assert.True(t, scored.Scored())
	assert.True(t, scored.HasColumn(ColumnScore))
	assert.False(t, table.HasColumn(ColumnScore), "input columns must not change")
	assert.Nil(t, table.Records[0].Score, "input records must not change")

	scores, err := scored.Scores()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.9, 0.5}, scores)

	// 깊은 복사 확인
	scored.Records[0].Values["roe"] = 99
	assert.Equal(t, 10.0, table.Records[0].Values["roe"])

	_, err = table.WithScores([]float64{1})
	assert.Error(t, err)
}

func TestScoreTable_Scores_Unscored(t *testing.T) {
	table, err := NewScoreTable(nil, nil, sampleRecords())
	require.NoError(t, err)

	_, err = table.Scores()
	var ve *InputValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestScoreTable_Subset(t *testing.T) {
	table, err := NewScoreTable(nil, []string{"roe"}, sampleRecords())
	require.NoError(t, err)

	sub := table.Subset(func(r EntityRecord) bool { return r.ID != "B" })
	assert.Equal(t, []string{"A", "C"}, sub.IDs())
	assert.Equal(t, 3, table.Len())
}

func TestEntityRecord_Cell(t *testing.T) {
	score := 0.25
	rec := EntityRecord{
		ID:         "X",
		ShortName:  "Xeno",
		Values:     map[string]float64{"pe": 12.5, "empty": math.NaN()},
		Attributes: map[string]string{ColumnCountry: "US"},
		Score:      &score,
	}

	assert.Equal(t, "X", rec.Cell(ColumnID))
	assert.Equal(t, "Xeno", rec.Cell(ColumnShortName))
	assert.Equal(t, "0.25", rec.Cell(ColumnScore))
	assert.Equal(t, "12.5", rec.Cell("pe"))
	assert.Equal(t, "", rec.Cell("empty"))
	assert.Equal(t, "US", rec.Cell(ColumnCountry))
	assert.Equal(t, "US", rec.Country())
	assert.Equal(t, "", rec.Sector())
}

func TestWeightConfig(t *testing.T) {
	w := WeightConfig{"a": 1, "b": 3}
	assert.Equal(t, 4.0, w.Sum())

	scaled := w.Scaled(2.5)
	assert.Equal(t, 10.0, scaled.Sum())
	assert.Equal(t, 1.0, w["a"], "Scaled must not modify the receiver")
}
