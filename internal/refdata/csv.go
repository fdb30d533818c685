package refdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// ColumnDate is the index column of every wide reference matrix
const ColumnDate = "DATE"

// dateLayouts are the accepted DATE cell formats
var dateLayouts = []string{
	contracts.DateLayout,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
}

// FileSource loads reference data from CSV files
type FileSource struct {
	ReturnsPath     string
	UniversePath    string
	UniverseName    string
	FundamentalsDir string
}

// LoadReturns reads the daily returns matrix
func (s *FileSource) LoadReturns(ctx context.Context) (*contracts.TimeSeriesTable, error) {
	return readWideFile(s.ReturnsPath, "returns")
}

// LoadUniverse reads the benchmark constituent list
func (s *FileSource) LoadUniverse(ctx context.Context) (*contracts.ReferenceUniverse, error) {
	f, err := os.Open(s.UniversePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open universe: %w", err)
	}
	defer f.Close()

	u, err := ReadUniverse(f, s.UniverseName)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe %s: %w", s.UniversePath, err)
	}
	return u, nil
}

// LoadFundamentals reads one matrix per *.csv in FundamentalsDir (file stem = metric).
// A missing directory yields no metrics.
func (s *FileSource) LoadFundamentals(ctx context.Context) (map[string]*contracts.TimeSeriesTable, error) {
	out := make(map[string]*contracts.TimeSeriesTable)
	if s.FundamentalsDir == "" {
		return out, nil
	}

	paths, err := filepath.Glob(filepath.Join(s.FundamentalsDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to list fundamentals: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		metric := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		table, err := readWideFile(path, metric)
		if err != nil {
			return nil, err
		}
		out[metric] = table
	}
	return out, nil
}

func readWideFile(path, name string) (*contracts.TimeSeriesTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	table, err := ReadWide(f, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return table, nil
}

// ReadWide parses a DATE × ID matrix: first column DATE, one column per ID.
// Empty cells are missing observations (NaN).
func ReadWide(r io.Reader, name string) (*contracts.TimeSeriesTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &contracts.InputValidationError{Field: name, Message: "file is empty"}
	}
	if err != nil {
		return nil, &contracts.InputValidationError{Field: name, Message: err.Error()}
	}

	if len(header) < 2 || trimCell(header[0]) != ColumnDate {
		return nil, &contracts.InputValidationError{
			Field:   name,
			Message: fmt.Sprintf("first column must be %s followed by at least one ID column", ColumnDate),
		}
	}

	ids := make([]string, len(header)-1)
	for i, h := range header[1:] {
		ids[i] = trimCell(h)
	}

	var dates []time.Time
	var values [][]float64
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &contracts.InputValidationError{Field: name, Message: err.Error()}
		}

		date, err := ParseDate(rec[0])
		if err != nil {
			return nil, &contracts.InputValidationError{Field: name, Message: fmt.Sprintf("line %d: %v", line, err)}
		}

		row := make([]float64, len(ids))
		for j, cell := range rec[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				row[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, &contracts.InputValidationError{
					Field:   name,
					Message: fmt.Sprintf("line %d, column %s: %q is not a number", line, ids[j], cell),
				}
			}
			row[j] = v
		}

		dates = append(dates, date)
		values = append(values, row)
	}

	return contracts.NewTimeSeriesTable(name, dates, ids, values)
}

// ReadUniverse reads the ID column of a constituent list
func ReadUniverse(r io.Reader, name string) (*contracts.ReferenceUniverse, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &contracts.InputValidationError{Field: "universe", Message: err.Error()}
	}
	if len(rows) == 0 {
		return nil, &contracts.InputValidationError{Field: "universe", Message: "file is empty"}
	}

	col := -1
	for i, h := range rows[0] {
		if trimCell(h) == contracts.ColumnID {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, &contracts.InputValidationError{Field: contracts.ColumnID, Message: "universe file has no ID column"}
	}

	ids := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		ids = append(ids, strings.TrimSpace(row[col]))
	}
	return contracts.NewReferenceUniverse(name, ids), nil
}

// ParseDate parses a date in any of the accepted layouts
func ParseDate(cell string) (time.Time, error) {
	cell = strings.TrimSpace(cell)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, cell); err == nil {
			return d.Truncate(24 * time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", ColumnDate, cell)
}

// trimCell trims whitespace and a leading UTF-8 BOM
func trimCell(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")
}
