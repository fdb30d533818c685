package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/profile"
	"github.com/wonny/screener/internal/refdata"
	"github.com/wonny/screener/pkg/database"
)

// dataCheckCmd represents the data check command
var dataCheckCmd = &cobra.Command{
	Use:   "data-check",
	Short: "참조 데이터 / 프로필 상태 확인",
	Long: `참조 데이터 상태를 확인합니다.

확인 항목:
- DB 연결 상태 (DATABASE_URL 설정 시)
- 수익률 매트릭스 기간 / 종목 수
- 벤치마크 유니버스 구성종목 수와 수익률 커버리지
- 펀더멘털 metric 별 커버리지
- 프로필 검증 (--profile)

Example:
  go run ./cmd/screener data-check
  go run ./cmd/screener data-check --init-schema
  go run ./cmd/screener data-check --profile configs/profiles/clean_energy.yaml`,
	RunE: runDataCheck,
}

var (
	dataCheckInitSchema bool
	dataCheckProfile    string
)

func init() {
	rootCmd.AddCommand(dataCheckCmd)

	dataCheckCmd.Flags().BoolVar(&dataCheckInitSchema, "init-schema", false, "create the refdata schema (DATABASE_URL required)")
	dataCheckCmd.Flags().StringVar(&dataCheckProfile, "profile", "", "validate this screening profile")
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "=== Theme Screener Data Check ===")

	// 1. Load config
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// 2. Database (optional)
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		checkDatabase(ctx, w, db)

		if dataCheckInitSchema {
			repo := refdata.NewRepository(db.Pool, cfg.Data.ReturnsMetric, cfg.Data.UniverseName)
			if err := repo.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			PrintSuccess(w, "refdata schema ready")
		}
	} else if dataCheckInitSchema {
		return fmt.Errorf("--init-schema requires DATABASE_URL")
	}

	// 3. Reference data
	store, cleanup, err := loadReference(ctx, cfg, log)
	if err != nil {
		PrintError(w, err.Error())
		return err
	}
	defer cleanup()

	checkReference(w, store)

	// 4. Profile (optional)
	path := dataCheckProfile
	if path == "" {
		path = cfg.ProfilePath
	}
	if path != "" {
		return checkProfile(w, path)
	}
	return nil
}

func checkDatabase(ctx context.Context, w io.Writer, db *database.DB) {
	PrintHeader(w, "Database")
	status := db.HealthCheck(ctx)
	if !status.Healthy {
		PrintError(w, "unhealthy: "+status.Error)
		return
	}
	PrintKeyValue(w, "Ping", status.ResponseTime.String(), 12)
	PrintKeyValue(w, "Connections", fmt.Sprintf("%d total / %d idle / %d max", status.TotalConns, status.IdleConns, status.MaxConns), 12)
}

func checkReference(w io.Writer, store *refdata.Store) {
	summary := store.Summary()

	PrintHeader(w, "Returns")
	PrintKeyValue(w, "IDs", fmt.Sprintf("%d", summary.ReturnsIDs), 12)
	PrintKeyValue(w, "Dates", fmt.Sprintf("%d", summary.ReturnsDates), 12)
	if summary.ReturnsDates > 0 {
		PrintKeyValue(w, "Period", fmt.Sprintf("%s ~ %s", summary.ReturnsFrom.Format(contracts.DateLayout), summary.ReturnsTo.Format(contracts.DateLayout)), 12)
	}

	PrintHeader(w, "Universe: "+summary.Universe)
	PrintKeyValue(w, "Constituents", fmt.Sprintf("%d", summary.Constituents), 12)
	if summary.UncoveredIDs > 0 {
		PrintWarning(w, fmt.Sprintf("%d constituent(s) have no returns column", summary.UncoveredIDs))
	} else {
		PrintSuccess(w, "every constituent has a returns column")
	}

	PrintHeader(w, "Fundamentals")
	if len(summary.Fundamentals) == 0 {
		PrintInfo(w, "no fundamental metrics loaded")
		return
	}
	columns := []string{"Metric", "IDs", "Dates", "Universe coverage"}
	widths := []int{24, 8, 8, 18}
	PrintTableHeader(w, columns, widths)
	for _, metric := range summary.Fundamentals {
		table := store.Fundamentals[metric]
		PrintTableRow(w, []string{
			metric,
			fmt.Sprintf("%d", len(table.IDs)),
			fmt.Sprintf("%d", table.Len()),
			coverage(store.Universe, table),
		}, widths)
	}
}

// coverage is the share of universe constituents that have a column in table
func coverage(universe *contracts.ReferenceUniverse, table *contracts.TimeSeriesTable) string {
	if universe == nil || universe.Count() == 0 {
		return "n/a"
	}
	covered := 0
	for _, id := range universe.IDs {
		if table.Has(id) {
			covered++
		}
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", covered, universe.Count(), float64(covered)*100/float64(universe.Count()))
}

func checkProfile(w io.Writer, path string) error {
	PrintHeader(w, "Profile: "+path)

	p, _, err := profile.Load(path)
	if err != nil {
		PrintError(w, err.Error())
		return err
	}

	hash, err := profile.Hash(p)
	if err != nil {
		return err
	}
	PrintKeyValue(w, "Profile ID", p.Meta.ProfileID, 12)
	PrintKeyValue(w, "Version", p.Meta.Version, 12)
	PrintKeyValue(w, "Hash", hash[:12], 12)

	warnings := profile.Check(p)
	for _, warn := range warnings {
		PrintWarning(w, fmt.Sprintf("[%s] %s", warn.Code, warn.Message))
	}
	if len(warnings) == 0 {
		PrintSuccess(w, "profile is valid")
	}
	return nil
}
