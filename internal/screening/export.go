package screening

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/wonny/screener/internal/contracts"
)

// Projection is the display view of a screened table
type Projection struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// DisplayColumns returns short_name, Composite_Score, gics_1_sector plus
// country and Market cap group when the table carries them
func DisplayColumns(table *contracts.ScoreTable) []string {
	cols := []string{contracts.ColumnShortName, contracts.ColumnScore, contracts.ColumnSector}
	for _, c := range []string{contracts.ColumnCountry, contracts.ColumnMarketCapGroup} {
		if table.HasColumn(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// Project renders the given columns sorted by score descending (stable on ties)
func Project(table *contracts.ScoreTable, columns []string) (*Projection, error) {
	if len(columns) == 0 {
		columns = DisplayColumns(table)
	}
	for _, c := range columns {
		if c == contracts.ColumnScore || c == contracts.ColumnShortName || c == contracts.ColumnSector {
			continue
		}
		if !table.HasColumn(c) {
			return nil, &contracts.InputValidationError{Field: c, Message: "display column does not exist"}
		}
	}

	records, err := SortedByScore(table)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = r.Cell(c)
		}
		rows[i] = row
	}

	return &Projection{Columns: append([]string(nil), columns...), Rows: rows}, nil
}

// SortedByScore returns the records ordered by score descending
func SortedByScore(table *contracts.ScoreTable) ([]contracts.EntityRecord, error) {
	if !table.Scored() && table.Len() > 0 {
		return nil, &contracts.InputValidationError{Field: contracts.ColumnScore, Message: "table has not been scored"}
	}

	records := append([]contracts.EntityRecord(nil), table.Records...)
	sort.SliceStable(records, func(i, j int) bool {
		return *records[i].Score > *records[j].Score
	})
	return records, nil
}

// WriteCSV writes the projection with a header row
func (p *Projection) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(p.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(p.Rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

// WriteTableCSV writes every column of the table in input order, score descending
func WriteTableCSV(w io.Writer, table *contracts.ScoreTable) error {
	p, err := Project(table, table.Columns)
	if err != nil {
		return err
	}
	return p.WriteCSV(w)
}
