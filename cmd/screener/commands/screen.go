package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/analysis"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/refdata"
	"github.com/wonny/screener/internal/screening"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen <input.csv>",
	Short: "종목 스크리닝 (정규화 → 가중 점수 → 백분위 필터)",
	Long: `입력 CSV 를 스크리닝합니다.

단계:
- 선택한 숫자 컬럼을 min-max 정규화
- 가중 평균으로 Composite_Score 계산
- 백분위 임계값 이상 종목만 선별

Example:
  go run ./cmd/screener screen companies.csv
  go run ./cmd/screener screen companies.csv --criteria roe,pe --weight roe=2 --weight pe=1 --percentile 75
  go run ./cmd/screener screen companies.csv --profile configs/profiles/clean_energy.yaml --export screened.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runScreen,
}

var screenExport string

func init() {
	rootCmd.AddCommand(screenCmd)

	addScreenFlags(screenCmd)
	screenCmd.Flags().StringVar(&screenExport, "export", "", "write the screened subset to this CSV file")
}

func runScreen(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := resolveScreen(cmd, args[0], cfg, log)
	if err != nil {
		return err
	}

	// 스크리닝만 하므로 참조 데이터는 필요 없음
	svc := analysis.NewService(&refdata.Store{}, nil, nil, log)
	out, err := svc.Screen(opts.Table, opts.Params, opts.Columns)
	if err != nil {
		return err
	}

	if screenExport != "" {
		if err := exportCSV(screenExport, out); err != nil {
			return err
		}
		log.WithField("path", screenExport).Info("Screened subset exported")
	}

	w := cmd.OutOrStdout()
	if outputFormat == OutputJSON {
		return PrintJSON(w, out)
	}
	printScreening(w, out)
	return nil
}

func exportCSV(path string, out *analysis.Screening) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := screening.WriteTableCSV(f, out.Result.Filtered.Table); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func printScreening(w io.Writer, out *analysis.Screening) {
	s := out.Summary

	PrintHeader(w, "Screening Result")
	PrintKeyValue(w, "Run ID", s.RunID, 12)
	PrintKeyValue(w, "Criteria", strings.Join(out.Params.Criteria, ", "), 12)
	PrintKeyValue(w, "Weights", formatWeights(out.Params), 12)
	PrintKeyValue(w, "Percentile", fmt.Sprintf("%g", s.Percentile), 12)
	PrintKeyValue(w, "Threshold", fmt.Sprintf("%.4f", s.Threshold), 12)
	PrintKeyValue(w, "Retained", fmt.Sprintf("%d / %d", s.Retained, s.Total), 12)
	PrintKeyValue(w, "Avg score", fmt.Sprintf("%.4f", s.AverageScore), 12)

	for _, b := range s.Composition {
		PrintHeader(w, "Composition by "+b.Column)
		items := make([]string, 0, 5)
		for _, g := range b.Top(5) {
			items = append(items, fmt.Sprintf("%-24s %4d  (%.1f%%)", g.Name, g.Count, g.SharePct))
		}
		PrintList(w, items)
	}

	PrintHeader(w, "Score Distribution")
	printHistogram(w, s.Histogram)

	if len(s.Criteria) > 0 {
		PrintHeader(w, "Criteria (screened)")
		columns := []string{"Criterion", "Min", "Q1", "Median", "Q3", "Max"}
		rows := make([][]string, len(s.Criteria))
		for i, sp := range s.Criteria {
			rows[i] = []string{sp.Criterion,
				contracts.FormatNumber(sp.Min), contracts.FormatNumber(sp.Q1), contracts.FormatNumber(sp.Median),
				contracts.FormatNumber(sp.Q3), contracts.FormatNumber(sp.Max)}
		}
		widths := ColumnWidths(columns, rows, 16)
		PrintTableHeader(w, columns, widths)
		for _, row := range rows {
			PrintTableRow(w, row, widths)
		}
	}

	PrintHeader(w, "Screened Companies")
	widths := ColumnWidths(out.Projection.Columns, out.Projection.Rows, 32)
	PrintTableHeader(w, out.Projection.Columns, widths)
	for _, row := range out.Projection.Rows {
		PrintTableRow(w, row, widths)
	}
	fmt.Fprintln(w)
}

func printHistogram(w io.Writer, bins []screening.HistogramBin) {
	peak := 0
	for _, b := range bins {
		if b.Count > peak {
			peak = b.Count
		}
	}
	for _, b := range bins {
		bar := 0
		if peak > 0 {
			bar = b.Count * 30 / peak
		}
		fmt.Fprintf(w, "   %.3f ~ %.3f  %-30s %d\n", b.Lower, b.Upper, strings.Repeat("█", bar), b.Count)
	}
}

func formatWeights(p screening.Params) string {
	names := make([]string, 0, len(p.Weights))
	for name := range p.Weights {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, p.Weights[name])
	}
	return strings.Join(parts, ", ")
}
