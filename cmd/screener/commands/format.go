package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/wonny/screener/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const lineWidth = 59

// PrintHeader prints a formatted section header
func PrintHeader(w io.Writer, title string) {
	fmt.Fprintln(w)
	PrintDoubleSeparator(w)
	fmt.Fprintf(w, "  %s\n", title)
	PrintSeparator(w)
}

// PrintSeparator prints a visual separator
func PrintSeparator(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("─", lineWidth))
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("═", lineWidth))
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(w io.Writer, message string) {
	fmt.Fprintf(w, "ℹ️  %s\n", message)
}

// PrintWarnings prints every aggregation warning
func PrintWarnings(w io.Writer, warnings []contracts.Warning) {
	for _, warn := range warnings {
		PrintWarning(w, fmt.Sprintf("[%s] %s", warn.Code, warn.Message))
	}
}

// ColumnWidths sizes each column to its widest cell, capped at max
func ColumnWidths(columns []string, rows [][]string, max int) []int {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for i := range widths {
		if widths[i] > max {
			widths[i] = max
		}
	}
	return widths
}

// PrintTableHeader prints a table header
func PrintTableHeader(w io.Writer, columns []string, widths []int) {
	PrintTableRow(w, columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], truncate(val, widths[i]))
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

// PrintList prints a bulleted list
func PrintList(w io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintf(w, "   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(w io.Writer, key string, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatPct renders a percentage with sign
func formatPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// formatOptional renders a possibly undefined value
func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return contracts.FormatNumber(*v)
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}
