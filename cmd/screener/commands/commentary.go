package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/analysis"
	"github.com/wonny/screener/internal/commentary"
	"github.com/wonny/screener/internal/refdata"
)

// commentaryCmd represents the commentary command
var commentaryCmd = &cobra.Command{
	Use:   "commentary <input.csv>",
	Short: "선별 종목에 대한 LLM 분석",
	Long: `입력 CSV 를 스크리닝한 뒤 선별 종목을 chunk 단위로 LLM 에 보내고,
chunk 가 여러 개면 응답들을 한 번 더 요약합니다.

Presets:
  sector_summary  섹터 구성 분석
  rationale       선정 근거 분석

Example:
  go run ./cmd/screener commentary companies.csv --preset sector_summary
  go run ./cmd/screener commentary companies.csv --question "Which countries dominate?" --chunk-size 20`,
	Args: cobra.ExactArgs(1),
	RunE: runCommentary,
}

var (
	commentaryQuestion  string
	commentaryPreset    string
	commentaryChunkSize int
)

func init() {
	rootCmd.AddCommand(commentaryCmd)

	addScreenFlags(commentaryCmd)
	commentaryCmd.Flags().StringVar(&commentaryQuestion, "question", "", "question to ask about the screened companies")
	commentaryCmd.Flags().StringVar(&commentaryPreset, "preset", "", "preset question ("+strings.Join(presetNames(), "|")+")")
	commentaryCmd.Flags().IntVar(&commentaryChunkSize, "chunk-size", 0, "rows per request (default: profile, then LLM_CHUNK_SIZE)")
}

func presetNames() []string {
	names := make([]string, 0, len(commentary.Presets))
	for name := range commentary.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runCommentary(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := resolveScreen(cmd, args[0], cfg, log)
	if err != nil {
		return err
	}

	question := commentaryQuestion
	if commentaryPreset != "" {
		q, ok := commentary.Presets[commentaryPreset]
		if !ok {
			return fmt.Errorf("unknown preset %q (valid: %s)", commentaryPreset, strings.Join(presetNames(), ", "))
		}
		question = q
	}
	if question == "" && opts.Profile != nil {
		question = opts.Profile.Commentary.Question
	}

	chunkSize := cfg.LLM.ChunkSize
	if opts.Profile != nil && opts.Profile.Commentary.ChunkSize > 0 {
		chunkSize = opts.Profile.Commentary.ChunkSize
	}
	if cmd.Flags().Changed("chunk-size") {
		chunkSize = commentaryChunkSize
	}

	ctx := context.Background()
	analyzer, cleanup, err := newAnalyzer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := analysis.NewService(&refdata.Store{}, analyzer, nil, log)
	screened, err := svc.Screen(opts.Table, opts.Params, opts.Columns)
	if err != nil {
		return err
	}

	out, err := svc.Commentary(ctx, screened.Result.Filtered.Table, commentary.Request{
		Question:  question,
		Columns:   opts.Columns,
		ChunkSize: chunkSize,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if outputFormat == OutputJSON {
		return PrintJSON(w, out)
	}

	PrintHeader(w, "Commentary")
	PrintKeyValue(w, "Question", question, 10)
	PrintKeyValue(w, "Companies", fmt.Sprintf("%d in %d chunk(s)", len(screened.IDs), out.Chunks), 10)
	PrintSeparator(w)
	fmt.Fprintln(w, out.Answer)
	fmt.Fprintln(w)
	return nil
}
