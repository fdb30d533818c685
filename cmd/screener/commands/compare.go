package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/analysis"
	"github.com/wonny/screener/internal/contracts"
)

// returnsCmd represents the returns command
var returnsCmd = &cobra.Command{
	Use:   "returns <input.csv>",
	Short: "선별 종목 vs 벤치마크 누적 수익률 비교",
	Long: `입력 CSV 를 스크리닝한 뒤 선별 종목과 벤치마크 유니버스의
동일가중 누적 수익률을 비교합니다 (시작일 전날 = 1.0).

Example:
  go run ./cmd/screener returns companies.csv --start 2023-01-01
  go run ./cmd/screener returns companies.csv --profile configs/profiles/clean_energy.yaml -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runReturns,
}

// fundamentalsCmd represents the fundamentals command
var fundamentalsCmd = &cobra.Command{
	Use:   "fundamentals <input.csv>",
	Short: "선별 종목 vs 벤치마크 펀더멘털 평균 비교",
	Long: `입력 CSV 를 스크리닝한 뒤 선별 종목과 벤치마크 유니버스의
일자별 펀더멘털 평균 시계열을 비교합니다 (누적 없음).

Example:
  go run ./cmd/screener fundamentals companies.csv --metric revenue --metric ebitda`,
	Args: cobra.ExactArgs(1),
	RunE: runFundamentals,
}

var fundamentalsMetrics []string

func init() {
	rootCmd.AddCommand(returnsCmd)
	rootCmd.AddCommand(fundamentalsCmd)

	addScreenFlags(returnsCmd)
	addStartFlag(returnsCmd)

	addScreenFlags(fundamentalsCmd)
	addStartFlag(fundamentalsCmd)
	fundamentalsCmd.Flags().StringSliceVar(&fundamentalsMetrics, "metric", nil, "metrics to compare (default: profile, then every loaded metric)")
}

// screenAndLoad screens the input and loads the reference store
func screenAndLoad(cmd *cobra.Command, path string) (*analysis.Service, *analysis.Screening, *screenOptions, func(), error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	opts, err := resolveScreen(cmd, path, cfg, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store, cleanup, err := loadReference(context.Background(), cfg, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	svc := analysis.NewService(store, nil, nil, log)
	out, err := svc.Screen(opts.Table, opts.Params, opts.Columns)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	return svc, out, opts, cleanup, nil
}

func runReturns(cmd *cobra.Command, args []string) error {
	svc, screened, opts, cleanup, err := screenAndLoad(cmd, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	cmp, err := svc.Returns(screened.IDs, opts.Start)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if outputFormat == OutputJSON {
		return PrintJSON(w, cmp)
	}
	printReturns(w, screened, cmp)
	return nil
}

func runFundamentals(cmd *cobra.Command, args []string) error {
	svc, screened, opts, cleanup, err := screenAndLoad(cmd, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := fundamentalsMetrics
	if !cmd.Flags().Changed("metric") && opts.Profile != nil {
		metrics = opts.Profile.Comparison.Fundamentals
	}

	out, err := svc.Fundamentals(metrics, screened.IDs, opts.Start)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if outputFormat == OutputJSON {
		return PrintJSON(w, out)
	}
	for _, fc := range out {
		printFundamentals(w, fc)
	}
	return nil
}

func printReturns(w io.Writer, screened *analysis.Screening, cmp *contracts.ReturnsComparison) {
	p, r := cmp.Portfolio, cmp.Reference

	PrintHeader(w, "Cumulative Returns")
	PrintKeyValue(w, "Start", cmp.Start.Format(contracts.DateLayout), 14)
	PrintKeyValue(w, "Period", fmt.Sprintf("%s ~ %s", p.FirstDate.Format(contracts.DateLayout), p.LastDate.Format(contracts.DateLayout)), 14)
	PrintKeyValue(w, "Screened", fmt.Sprintf("%d selected, %d with returns", len(screened.IDs), len(p.Included)), 14)
	PrintSeparator(w)

	columns := []string{"Series", "Total", "Annualized", "Volatility", "Max DD", "IDs"}
	widths := []int{20, 10, 10, 10, 10, 6}
	PrintTableHeader(w, columns, widths)
	for _, s := range []contracts.CumulativeSeries{p, r} {
		PrintTableRow(w, []string{
			s.Label,
			formatPct(s.TotalReturnPct),
			formatPct(s.Stats.AnnualizedReturn * 100),
			fmt.Sprintf("%.2f%%", s.Stats.Volatility*100),
			formatPct(s.Stats.MaxDrawdown * 100),
			fmt.Sprintf("%d", len(s.Included)),
		}, widths)
	}
	PrintSeparator(w)
	PrintKeyValue(w, "Excess return", formatPct(cmp.ExcessReturnPct), 14)

	if len(cmp.Warnings) > 0 {
		fmt.Fprintln(w)
		PrintWarnings(w, cmp.Warnings)
	}
	fmt.Fprintln(w)
}

func printFundamentals(w io.Writer, fc contracts.FundamentalsComparison) {
	PrintHeader(w, "Fundamentals: "+fc.Metric)
	PrintKeyValue(w, "Period", fmt.Sprintf("%s ~ %s", fc.Portfolio.FirstDate.Format(contracts.DateLayout), fc.Portfolio.LastDate.Format(contracts.DateLayout)), 10)
	PrintKeyValue(w, fc.Portfolio.Label, fmt.Sprintf("avg %s (%d IDs)", formatOptional(fc.Portfolio.Average), len(fc.Portfolio.Included)), 10)
	PrintKeyValue(w, fc.Reference.Label, fmt.Sprintf("avg %s (%d IDs)", formatOptional(fc.Reference.Average), len(fc.Reference.Included)), 10)

	if n := len(fc.Portfolio.Points); n > 0 {
		last, ref := fc.Portfolio.Points[n-1], fc.Reference.Points[len(fc.Reference.Points)-1]
		PrintKeyValue(w, "Latest", fmt.Sprintf("%s: %s vs %s", last.Date.Format(contracts.DateLayout), formatOptional(last.Mean), formatOptional(ref.Mean)), 10)
	}

	if len(fc.Warnings) > 0 {
		PrintWarnings(w, fc.Warnings)
	}
}
