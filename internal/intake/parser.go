package intake

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/wonny/screener/internal/contracts"
)

// Parse reads an uploaded screening table (CSV with header row).
// A column is numeric when every non-empty cell parses as a number;
// ID, short_name and the categorical columns are never numeric.
func Parse(r io.Reader) (*contracts.ScoreTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &contracts.InputValidationError{Field: "table", Message: "input is empty"}
	}
	if err != nil {
		return nil, &contracts.InputValidationError{Field: "table", Message: err.Error()}
	}

	columns, err := normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &contracts.InputValidationError{Field: "table", Message: err.Error()}
	}

	numeric := detectNumeric(columns, rows)
	if len(numeric) == 0 {
		return nil, &contracts.InputValidationError{Field: "table", Message: "input has no numeric columns"}
	}

	isNumeric := make(map[string]bool, len(numeric))
	for _, c := range numeric {
		isNumeric[c] = true
	}

	records := make([]contracts.EntityRecord, 0, len(rows))
	for _, row := range rows {
		rec := contracts.EntityRecord{
			Values:     make(map[string]float64, len(numeric)),
			Attributes: make(map[string]string),
		}
		for j, col := range columns {
			cell := strings.TrimSpace(row[j])
			switch {
			case col == contracts.ColumnID:
				rec.ID = cell
			case col == contracts.ColumnShortName:
				rec.ShortName = cell
			case isNumeric[col]:
				v, _ := parseNumber(cell)
				rec.Values[col] = v
			default:
				rec.Attributes[col] = cell
			}
		}
		records = append(records, rec)
	}

	return contracts.NewScoreTable(columns, numeric, records)
}

// ParseFile opens and parses a CSV file
func ParseFile(path string) (*contracts.ScoreTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return table, nil
}

// normalizeHeader trims names, strips a UTF-8 BOM and checks required columns
func normalizeHeader(header []string) ([]string, error) {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			return nil, &contracts.InputValidationError{Field: "header", Message: fmt.Sprintf("column %d has no name", i+1)}
		}
		if seen[name] {
			return nil, &contracts.InputValidationError{Field: name, Message: "duplicate column"}
		}
		seen[name] = true
		columns[i] = name
	}

	for _, required := range []string{contracts.ColumnID, contracts.ColumnShortName} {
		if !seen[required] {
			return nil, &contracts.InputValidationError{Field: required, Message: "required column is missing"}
		}
	}
	return columns, nil
}

// detectNumeric returns numeric columns in input order
func detectNumeric(columns []string, rows [][]string) []string {
	reserved := map[string]bool{contracts.ColumnID: true, contracts.ColumnShortName: true}
	for _, c := range contracts.CategoricalColumns {
		reserved[c] = true
	}

	var numeric []string
	for j, col := range columns {
		if reserved[col] {
			continue
		}

		filled := 0
		ok := true
		for _, row := range rows {
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				continue
			}
			if _, valid := parseNumber(cell); !valid {
				ok = false
				break
			}
			filled++
		}
		if ok && filled > 0 {
			numeric = append(numeric, col)
		}
	}
	return numeric
}

// parseNumber parses a cell; empty and NaN cells yield (NaN, true)
func parseNumber(cell string) (float64, bool) {
	if cell == "" {
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}
