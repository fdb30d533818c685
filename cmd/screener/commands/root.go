package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	verbose      bool
)

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "Theme Screener - 테마 종목 스크리닝 및 벤치마크 비교",
	Long: `Theme Screener CLI

CSV 종목 테이블을 정규화 → 가중 점수 → 백분위 필터로 선별하고,
선별 종목과 벤치마크 유니버스의 누적 수익률 / 펀더멘털을 비교합니다.

Usage:
  go run ./cmd/screener [command]

Examples:
  go run ./cmd/screener screen companies.csv --criteria roe,revenue_growth --percentile 75
  go run ./cmd/screener returns companies.csv --start 2023-01-01
  go run ./cmd/screener serve --port 8080
  go run ./cmd/screener data-check`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", OutputText, "output format (text|json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}
