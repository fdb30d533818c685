package contracts

import (
	"fmt"
	"math"
	"strconv"
)

// Input table column names
const (
	ColumnID             = "ID"
	ColumnShortName      = "short_name"
	ColumnSector         = "gics_1_sector"
	ColumnCountry        = "country"
	ColumnMarketCapGroup = "Market cap group"
	ColumnScore          = "Composite_Score"
)

// CategoricalColumns are the optional grouping columns, in display order
var CategoricalColumns = []string{ColumnSector, ColumnCountry, ColumnMarketCapGroup}

// EntityRecord is one screened row (a company)
type EntityRecord struct {
	ID         string             `json:"id"`
	ShortName  string             `json:"short_name"`
	Values     map[string]float64 `json:"values"`               // numeric columns, NaN = empty cell
	Attributes map[string]string  `json:"attributes,omitempty"` // non-numeric columns
	Score      *float64           `json:"composite_score,omitempty"`
}

// Sector returns the gics_1_sector attribute
func (r EntityRecord) Sector() string { return r.Attributes[ColumnSector] }

// Country returns the country attribute
func (r EntityRecord) Country() string { return r.Attributes[ColumnCountry] }

// MarketCapGroup returns the "Market cap group" attribute
func (r EntityRecord) MarketCapGroup() string { return r.Attributes[ColumnMarketCapGroup] }

// Cell renders any column of the record as text
func (r EntityRecord) Cell(column string) string {
	switch column {
	case ColumnID:
		return r.ID
	case ColumnShortName:
		return r.ShortName
	case ColumnScore:
		if r.Score == nil {
			return ""
		}
		return FormatNumber(*r.Score)
	}

	if v, ok := r.Values[column]; ok {
		return FormatNumber(v)
	}
	return r.Attributes[column]
}

// clone returns a deep copy so derived tables never alias their input
func (r EntityRecord) clone() EntityRecord {
	out := EntityRecord{ID: r.ID, ShortName: r.ShortName}

	out.Values = make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		out.Values[k] = v
	}
	if r.Attributes != nil {
		out.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			out.Attributes[k] = v
		}
	}
	if r.Score != nil {
		s := *r.Score
		out.Score = &s
	}
	return out
}

// FormatNumber renders a float the shortest way, NaN as empty
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ScoreTable is a set of records keyed by unique ID
// ⭐ SSOT: Stage 1 → 2 → 3 사이에 전달되는 테이블
type ScoreTable struct {
	Columns        []string       `json:"columns"`         // 입력 컬럼 순서 그대로
	NumericColumns []string       `json:"numeric_columns"` // 숫자형 컬럼 (입력 순서)
	Records        []EntityRecord `json:"records"`
}

// NewScoreTable validates ID uniqueness and builds a table
func NewScoreTable(columns, numeric []string, records []EntityRecord) (*ScoreTable, error) {
	seen := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, &InputValidationError{Field: ColumnID, Message: fmt.Sprintf("row %d has an empty ID", i+1)}
		}
		if prev, dup := seen[rec.ID]; dup {
			return nil, &InputValidationError{
				Field:   ColumnID,
				Message: fmt.Sprintf("duplicate ID %q at rows %d and %d", rec.ID, prev+1, i+1),
			}
		}
		seen[rec.ID] = i
	}

	return &ScoreTable{
		Columns:        append([]string(nil), columns...),
		NumericColumns: append([]string(nil), numeric...),
		Records:        records,
	}, nil
}

// Len returns the number of records
func (t *ScoreTable) Len() int {
	return len(t.Records)
}

// IDs returns record IDs in table order
func (t *ScoreTable) IDs() []string {
	ids := make([]string, len(t.Records))
	for i, r := range t.Records {
		ids[i] = r.ID
	}
	return ids
}

// HasColumn checks whether the input carried a column
func (t *ScoreTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// IsNumeric checks whether a column is numeric
func (t *ScoreTable) IsNumeric(name string) bool {
	for _, c := range t.NumericColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Scored reports whether every record carries a composite score
func (t *ScoreTable) Scored() bool {
	for _, r := range t.Records {
		if r.Score == nil {
			return false
		}
	}
	return len(t.Records) > 0
}

// Scores returns composite scores in table order
func (t *ScoreTable) Scores() ([]float64, error) {
	scores := make([]float64, len(t.Records))
	for i, r := range t.Records {
		if r.Score == nil {
			return nil, &InputValidationError{Field: ColumnScore, Message: fmt.Sprintf("record %q has no score", r.ID)}
		}
		scores[i] = *r.Score
	}
	return scores, nil
}

// WithScores returns a copy of the table with scores attached, input untouched
func (t *ScoreTable) WithScores(scores []float64) (*ScoreTable, error) {
	if len(scores) != len(t.Records) {
		return nil, fmt.Errorf("score count %d does not match record count %d", len(scores), len(t.Records))
	}

	out := t.cloneShape(len(t.Records))
	for i, r := range t.Records {
		rec := r.clone()
		s := scores[i]
		rec.Score = &s
		out.Records = append(out.Records, rec)
	}
	if !out.HasColumn(ColumnScore) {
		out.Columns = append(out.Columns, ColumnScore)
	}
	return out, nil
}

// Subset returns a copy holding the records accepted by keep, order preserved
func (t *ScoreTable) Subset(keep func(EntityRecord) bool) *ScoreTable {
	out := t.cloneShape(0)
	for _, r := range t.Records {
		if keep(r) {
			out.Records = append(out.Records, r.clone())
		}
	}
	return out
}

func (t *ScoreTable) cloneShape(capacity int) *ScoreTable {
	return &ScoreTable{
		Columns:        append([]string(nil), t.Columns...),
		NumericColumns: append([]string(nil), t.NumericColumns...),
		Records:        make([]EntityRecord, 0, capacity),
	}
}
