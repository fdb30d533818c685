package commentary

import (
	"fmt"
	"strings"

	"github.com/wonny/screener/internal/contracts"
)

// Chunk splits records into sequential, non-overlapping groups of at most n,
// preserving order
func Chunk(records []contracts.EntityRecord, n int) ([][]contracts.EntityRecord, error) {
	if n < 1 {
		return nil, &contracts.InputValidationError{Field: "chunk_size", Message: fmt.Sprintf("must be >= 1, got %d", n)}
	}

	chunks := make([][]contracts.EntityRecord, 0, (len(records)+n-1)/n)
	for start := 0; start < len(records); start += n {
		end := start + n
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks, nil
}

// FormatChunk renders a group: "Company: <short_name>", then one
// "<column>: <value>" line per other column, then a separator
func FormatChunk(records []contracts.EntityRecord, columns []string) string {
	var b strings.Builder
	b.WriteString(chunkHeader)

	for _, r := range records {
		b.WriteString("Company: ")
		b.WriteString(r.ShortName)
		b.WriteByte('\n')
		for _, col := range columns {
			if col == contracts.ColumnShortName {
				continue
			}
			b.WriteString(col)
			b.WriteString(": ")
			b.WriteString(r.Cell(col))
			b.WriteByte('\n')
		}
		b.WriteString(separator)
		b.WriteByte('\n')
	}
	return b.String()
}
