package screening

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

const (
	// DefaultCriteriaCount is how many leading numeric columns are used when none are selected
	DefaultCriteriaCount = 3

	// DefaultPercentile keeps the top half
	DefaultPercentile = 50.0
)

// Params is one parameter set for a full Stage 1→2→3 recomputation
type Params struct {
	Criteria   []string               `json:"criteria"`
	Weights    contracts.WeightConfig `json:"weights"`
	Percentile float64                `json:"percentile"`
}

// Result holds every stage output of one run, passed by value to callers
// ⭐ SSOT: 세션 상태 없음. 파라미터가 바뀌면 Run 을 다시 호출
type Result struct {
	RunID      string                `json:"run_id"`
	Params     Params                `json:"params"` // 기본값 적용 후 실제 사용된 파라미터
	Normalized *Normalized           `json:"normalized"`
	Scored     *contracts.ScoreTable `json:"scored"`
	Filtered   *FilterResult         `json:"filtered"`
}

// Pipeline composes Normalize → Score → Filter
type Pipeline struct {
	logger *logger.Logger
}

// NewPipeline creates a new screening pipeline
func NewPipeline(logger *logger.Logger) *Pipeline {
	return &Pipeline{logger: logger}
}

// Run executes stages 1 to 3 on a private copy of the input
func (p *Pipeline) Run(table *contracts.ScoreTable, params Params) (*Result, error) {
	if table == nil {
		return nil, &contracts.InputValidationError{Field: "table", Message: "no input table"}
	}
	if len(table.NumericColumns) == 0 {
		return nil, &contracts.InputValidationError{Field: "table", Message: "input has no numeric columns"}
	}

	resolved := ResolveParams(table, params)
	runID := uuid.NewString()
	log := p.logger.WithFields(map[string]interface{}{
		"run_id":     runID,
		"records":    table.Len(),
		"criteria":   resolved.Criteria,
		"percentile": resolved.Percentile,
	})

	normalized, err := Normalize(table, resolved.Criteria)
	if err != nil {
		log.WithError(err).Warn("Normalization rejected")
		return nil, fmt.Errorf("normalize: %w", err)
	}

	scored, err := Score(table, normalized, resolved.Weights)
	if err != nil {
		log.WithError(err).Warn("Scoring rejected")
		return nil, fmt.Errorf("score: %w", err)
	}

	filtered, err := Filter(scored, resolved.Percentile)
	if err != nil {
		log.WithError(err).Warn("Percentile filter rejected")
		return nil, fmt.Errorf("filter: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"threshold": filtered.Threshold,
		"retained":  filtered.Retained,
		"avg_score": filtered.AverageScore,
	}).Info("Screening completed")

	return &Result{
		RunID:      runID,
		Params:     resolved,
		Normalized: normalized,
		Scored:     scored,
		Filtered:   filtered,
	}, nil
}

// ResolveParams applies defaults: first three numeric columns, weight 1.0.
// An explicit empty weight map is kept so that scoring can reject it.
func ResolveParams(table *contracts.ScoreTable, params Params) Params {
	out := Params{
		Criteria:   append([]string(nil), params.Criteria...),
		Percentile: params.Percentile,
	}

	if len(out.Criteria) == 0 {
		n := DefaultCriteriaCount
		if len(table.NumericColumns) < n {
			n = len(table.NumericColumns)
		}
		out.Criteria = append([]string(nil), table.NumericColumns[:n]...)
	}

	if params.Weights == nil {
		out.Weights = DefaultWeights(out.Criteria)
	} else {
		out.Weights = make(contracts.WeightConfig, len(params.Weights))
		for c, w := range params.Weights {
			out.Weights[c] = w
		}
	}

	return out
}
