package contracts

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the canonical date format for reference data and output
const DateLayout = "2006-01-02"

// WeightConfig maps criterion name → weight (>= 0)
type WeightConfig map[string]float64

// Sum returns the total weight, added in name order so repeated calls agree bit for bit
func (w WeightConfig) Sum() float64 {
	names := make([]string, 0, len(w))
	for c := range w {
		names = append(names, c)
	}
	sort.Strings(names)

	var sum float64
	for _, c := range names {
		sum += w[c]
	}
	return sum
}

// Scaled returns a copy with every weight multiplied by k
func (w WeightConfig) Scaled(k float64) WeightConfig {
	out := make(WeightConfig, len(w))
	for c, v := range w {
		out[c] = v * k
	}
	return out
}

// TimeSeriesTable is a date × ID matrix (returns or one fundamental metric)
// ⭐ SSOT: 시작 시 한 번 로드되고 이후 읽기 전용 (락 없이 동시 읽기 가능)
type TimeSeriesTable struct {
	Name   string
	Dates  []time.Time // strictly increasing
	IDs    []string    // unique
	Values [][]float64 // [date][id], NaN = missing observation

	index map[string]int
}

// NewTimeSeriesTable validates shape and ordering and builds the column index
func NewTimeSeriesTable(name string, dates []time.Time, ids []string, values [][]float64) (*TimeSeriesTable, error) {
	if len(values) != len(dates) {
		return nil, &InputValidationError{
			Field:   name,
			Message: fmt.Sprintf("%d value rows for %d dates", len(values), len(dates)),
		}
	}

	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, &InputValidationError{
				Field: name,
				Message: fmt.Sprintf("dates must be strictly increasing: %s follows %s",
					dates[i].Format(DateLayout), dates[i-1].Format(DateLayout)),
			}
		}
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, &InputValidationError{Field: name, Message: fmt.Sprintf("column %d has an empty ID", i+1)}
		}
		if _, dup := index[id]; dup {
			return nil, &InputValidationError{Field: name, Message: fmt.Sprintf("duplicate ID column %q", id)}
		}
		index[id] = i
	}

	for i, row := range values {
		if len(row) != len(ids) {
			return nil, &InputValidationError{
				Field:   name,
				Message: fmt.Sprintf("row %s has %d values, expected %d", dates[i].Format(DateLayout), len(row), len(ids)),
			}
		}
	}

	return &TimeSeriesTable{
		Name:   name,
		Dates:  dates,
		IDs:    ids,
		Values: values,
		index:  index,
	}, nil
}

// Len returns the number of dates
func (t *TimeSeriesTable) Len() int {
	return len(t.Dates)
}

// Has checks whether an ID is a column of the table
func (t *TimeSeriesTable) Has(id string) bool {
	_, ok := t.index[id]
	return ok
}

// ColumnIndex returns the column position for an ID
func (t *TimeSeriesTable) ColumnIndex(id string) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

// StartIndex returns the first row with date >= from (Len() if none)
func (t *TimeSeriesTable) StartIndex(from time.Time) int {
	return sort.Search(len(t.Dates), func(i int) bool {
		return !t.Dates[i].Before(from)
	})
}

// FirstDate returns the first date, zero if empty
func (t *TimeSeriesTable) FirstDate() time.Time {
	if len(t.Dates) == 0 {
		return time.Time{}
	}
	return t.Dates[0]
}

// LastDate returns the last date, zero if empty
func (t *TimeSeriesTable) LastDate() time.Time {
	if len(t.Dates) == 0 {
		return time.Time{}
	}
	return t.Dates[len(t.Dates)-1]
}

// ReferenceUniverse is the benchmark constituent set (e.g., MSCI World)
type ReferenceUniverse struct {
	Name string   `json:"name"`
	IDs  []string `json:"ids"`
}

// NewReferenceUniverse drops empty and duplicate IDs, keeping first occurrence
func NewReferenceUniverse(name string, ids []string) *ReferenceUniverse {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return &ReferenceUniverse{Name: name, IDs: out}
}

// Count returns the number of constituents
func (u *ReferenceUniverse) Count() int {
	return len(u.IDs)
}
