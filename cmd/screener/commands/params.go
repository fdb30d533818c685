package commands

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/intake"
	"github.com/wonny/screener/internal/profile"
	"github.com/wonny/screener/internal/refdata"
	"github.com/wonny/screener/internal/screening"
	"github.com/wonny/screener/pkg/config"
	"github.com/wonny/screener/pkg/logger"
)

// screenFlags are shared by every command that screens an input CSV
type screenFlags struct {
	profilePath string
	criteria    []string
	weights     []string // name=value
	percentile  float64
	columns     []string
	start       string
}

var sf screenFlags

func addScreenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sf.profilePath, "profile", "", "screening profile YAML (default: PROFILE_PATH)")
	cmd.Flags().StringSliceVar(&sf.criteria, "criteria", nil, "numeric columns to score (default: first 3 numeric columns)")
	cmd.Flags().StringArrayVar(&sf.weights, "weight", nil, "criterion weight as name=value (repeatable; unlisted criteria keep 1.0 or the profile weight)")
	cmd.Flags().Float64Var(&sf.percentile, "percentile", screening.DefaultPercentile, "percentile threshold [0, 100]")
	cmd.Flags().StringSliceVar(&sf.columns, "columns", nil, "display columns")
}

func addStartFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sf.start, "start", "", "comparison start date YYYY-MM-DD (default: first available date)")
}

// screenOptions is the resolved input of one screening run
type screenOptions struct {
	Table   *contracts.ScoreTable
	Params  screening.Params
	Columns []string
	Start   time.Time
	Profile *profile.Profile
}

// resolveScreen reads the input CSV and merges profile and flags.
// Flags win over the profile when set explicitly.
func resolveScreen(cmd *cobra.Command, path string, cfg *config.Config, log *logger.Logger) (*screenOptions, error) {
	table, err := intake.ParseFile(path)
	if err != nil {
		return nil, err
	}

	opts := &screenOptions{Table: table, Params: screening.Params{Percentile: screening.DefaultPercentile}}

	profilePath := sf.profilePath
	if profilePath == "" {
		profilePath = cfg.ProfilePath
	}
	if profilePath != "" {
		p, err := loadProfile(profilePath, log)
		if err != nil {
			return nil, err
		}
		opts.Profile = p
		opts.Params = p.Params()
		opts.Columns = p.Display.Columns
		if opts.Start, err = p.ReturnsStart(); err != nil {
			return nil, fmt.Errorf("profile returns_start: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("criteria") {
		opts.Params.Criteria = sf.criteria
		opts.Params.Weights = nil
	}
	if flags.Changed("weight") {
		weights, err := parseWeights(sf.weights)
		if err != nil {
			return nil, err
		}
		opts.Params = mergeWeights(table, opts.Params, weights)
	}
	if flags.Changed("percentile") {
		opts.Params.Percentile = sf.percentile
	}
	if flags.Changed("columns") {
		opts.Columns = sf.columns
	}
	if flags.Lookup("start") != nil && flags.Changed("start") {
		start, err := refdata.ParseDate(sf.start)
		if err != nil {
			return nil, &contracts.InputValidationError{Field: "start", Message: err.Error()}
		}
		opts.Start = start
	}

	return opts, nil
}

func loadProfile(path string, log *logger.Logger) (*profile.Profile, error) {
	p, _, err := profile.Load(path)
	if err != nil {
		return nil, err
	}

	hash, err := profile.Hash(p)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"profile_id": p.Meta.ProfileID,
		"version":    p.Meta.Version,
		"hash":       hash[:12],
	}).Info("Profile loaded")

	for _, w := range profile.Check(p) {
		log.WithField("code", w.Code).Warn(w.Message)
	}
	return p, nil
}

// mergeWeights overlays flag weights on the current weights of the selected
// (or default) criteria. Criteria without any weight get 1.0.
func mergeWeights(table *contracts.ScoreTable, params screening.Params, flagWeights contracts.WeightConfig) screening.Params {
	if len(params.Criteria) == 0 {
		params.Criteria = screening.ResolveParams(table, screening.Params{}).Criteria
	}

	merged := screening.DefaultWeights(params.Criteria)
	for c, w := range params.Weights {
		merged[c] = w
	}
	// 선택되지 않은 기준의 가중치는 그대로 남겨 점수 단계에서 거부되게 함
	for c, w := range flagWeights {
		merged[c] = w
	}
	params.Weights = merged
	return params
}

// parseWeights parses repeated name=value flags
func parseWeights(pairs []string) (contracts.WeightConfig, error) {
	weights := make(contracts.WeightConfig, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, &contracts.InputValidationError{Field: "weight", Message: fmt.Sprintf("expected name=value, got %q", pair)}
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(w) {
			return nil, &contracts.InputValidationError{Field: name, Message: fmt.Sprintf("invalid weight %q", value)}
		}
		weights[name] = w
	}
	return weights, nil
}
