package contracts

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestNewTimeSeriesTable(t *testing.T) {
	dates := []time.Time{day("2024-01-01"), day("2024-01-02")}

	tests := []struct {
		name    string
		dates   []time.Time
		ids     []string
		values  [][]float64
		wantErr string
	}{
		{
			name:   "valid",
			dates:  dates,
			ids:    []string{"A", "B"},
			values: [][]float64{{0.01, 0.02}, {0.03, 0.04}},
		},
		{
			name:    "row count mismatch",
			dates:   dates,
			ids:     []string{"A"},
			values:  [][]float64{{0.01}},
			wantErr: "value rows",
		},
		{
			name:    "dates not increasing",
			dates:   []time.Time{day("2024-01-02"), day("2024-01-02")},
			ids:     []string{"A"},
			values:  [][]float64{{0.01}, {0.02}},
			wantErr: "strictly increasing",
		},
		{
			name:    "duplicate id",
			dates:   dates,
			ids:     []string{"A", "A"},
			values:  [][]float64{{0.01, 0.02}, {0.03, 0.04}},
			wantErr: "duplicate ID",
		},
		{
			name:    "ragged row",
			dates:   dates,
			ids:     []string{"A", "B"},
			values:  [][]float64{{0.01, 0.02}, {0.03}},
			wantErr: "expected 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewTimeSeriesTable("returns", tt.dates, tt.ids, tt.values)
			if tt.wantErr != "" {
				var ve *InputValidationError
				require.True(t, errors.As(err, &ve), "expected InputValidationError, got %v", err)
				assert.True(t, strings.Contains(ve.Message, tt.wantErr), ve.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, table.Len())
			assert.True(t, table.Has("B"))
			assert.False(t, table.Has("Z"))
			idx, ok := table.ColumnIndex("B")
			assert.True(t, ok)
			assert.Equal(t, 1, idx)
		})
	}
}

func TestTimeSeriesTable_StartIndex(t *testing.T) {
	table, err := NewTimeSeriesTable("returns",
		[]time.Time{day("2024-01-02"), day("2024-01-04"), day("2024-01-08")},
		[]string{"A"},
		[][]float64{{0}, {0}, {0}},
	)
	require.NoError(t, err)

	assert.Equal(t, 0, table.StartIndex(day("2023-12-31")))
	assert.Equal(t, 1, table.StartIndex(day("2024-01-03")))
	assert.Equal(t, 1, table.StartIndex(day("2024-01-04")))
	assert.Equal(t, 3, table.StartIndex(day("2024-02-01")))
	assert.Equal(t, day("2024-01-02"), table.FirstDate())
	assert.Equal(t, day("2024-01-08"), table.LastDate())
}

func TestNewReferenceUniverse(t *testing.T) {
	u := NewReferenceUniverse("MSCI World", []string{"A", "", "B", "A"})
	assert.Equal(t, []string{"A", "B"}, u.IDs)
	assert.Equal(t, 2, u.Count())
}

func TestErrorMessages(t *testing.T) {
	assert.Contains(t, (&NoWeightError{}).Error(), "no criteria")
	assert.Contains(t, (&NoWeightError{Criteria: []string{"a"}, Sum: 0}).Error(), "[a]")
	assert.Contains(t, (&RangeError{Field: "percentile", Value: "101", Valid: "[0, 100]"}).Error(), "percentile=101")
	assert.Contains(t, (&DataAlignmentError{Series: "returns", MissingIDs: []string{"X", "Y"}}).Error(), "2 id(s)")

	ce := &ComputationError{Stage: "returns", Message: "no values", Dates: []time.Time{day("2024-01-03")}}
	assert.Contains(t, ce.Error(), "2024-01-03")

	w := NewWarning(WarnMissingIDs, &DataAlignmentError{Series: "returns", MissingIDs: []string{"X"}})
	assert.Equal(t, WarnMissingIDs, w.Code)
	assert.Contains(t, w.Message, "X")
}
