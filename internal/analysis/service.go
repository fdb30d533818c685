package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/screener/internal/aggregate"
	"github.com/wonny/screener/internal/commentary"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/refdata"
	"github.com/wonny/screener/internal/screening"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

// ErrCommentaryDisabled is returned when no completion service is configured
var ErrCommentaryDisabled = errors.New("commentary is not configured")

// Screening is the outcome of one screening request
type Screening struct {
	Result     *screening.Result     `json:"-"`
	Summary    *screening.Summary    `json:"summary"`
	Params     screening.Params      `json:"params"`
	IDs        []string              `json:"ids"` // 선별된 ID (입력 순서)
	Projection *screening.Projection `json:"projection"`
}

// Service is the stateless entry point for every analysis operation
// ⭐ SSOT: CLI / HTTP / WebSocket 모두 이 서비스를 통해서만 계산
type Service struct {
	store      *refdata.Store
	pipeline   *screening.Pipeline
	aggregator *aggregate.Aggregator
	analyzer   *commentary.Analyzer
	metrics    *metrics.Recorder
	logger     *logger.Logger
}

// NewService creates a new analysis service. analyzer and recorder may be nil.
func NewService(store *refdata.Store, analyzer *commentary.Analyzer, recorder *metrics.Recorder, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		pipeline:   screening.NewPipeline(log),
		aggregator: aggregate.NewAggregator(log),
		analyzer:   analyzer,
		metrics:    recorder,
		logger:     log,
	}
}

// Reference describes the loaded reference data
func (s *Service) Reference() contracts.ReferenceSummary {
	return s.store.Summary()
}

// CommentaryEnabled reports whether Commentary can be called
func (s *Service) CommentaryEnabled() bool {
	return s.analyzer != nil
}

// Screen runs stages 1 to 3 and builds the summary and display projection
func (s *Service) Screen(table *contracts.ScoreTable, params screening.Params, columns []string) (out *Screening, err error) {
	defer s.observe("screen", time.Now(), &err)

	result, err := s.pipeline.Run(table, params)
	if err != nil {
		return nil, err
	}

	summary, err := screening.Summarize(result, screening.DefaultHistogramBins)
	if err != nil {
		return nil, err
	}

	projection, err := screening.Project(result.Filtered.Table, columns)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordRetained(result.Filtered.Retained)

	return &Screening{
		Result:     result,
		Summary:    summary,
		Params:     result.Params,
		IDs:        result.Filtered.IDs(),
		Projection: projection,
	}, nil
}

// Returns compares the basket's cumulative returns with the reference universe
func (s *Service) Returns(ids []string, start time.Time) (out *contracts.ReturnsComparison, err error) {
	defer s.observe("returns", time.Now(), &err)

	out, err = s.aggregator.Returns(ids, s.store.Universe, s.store.Returns, start)
	if err != nil {
		return nil, err
	}
	s.recordWarnings(out.Warnings)
	return out, nil
}

// Fundamentals compares mean metric series; empty metrics means all loaded
func (s *Service) Fundamentals(metricNames []string, ids []string, start time.Time) (out []contracts.FundamentalsComparison, err error) {
	defer s.observe("fundamentals", time.Now(), &err)

	out, err = s.aggregator.FundamentalsAll(metricNames, ids, s.store.Universe, s.store.Fundamentals, start)
	if err != nil {
		return nil, err
	}
	for _, fc := range out {
		s.recordWarnings(fc.Warnings)
	}
	return out, nil
}

// Commentary asks the completion service about a screened table
func (s *Service) Commentary(ctx context.Context, table *contracts.ScoreTable, req commentary.Request) (out *commentary.Analysis, err error) {
	defer s.observe("commentary", time.Now(), &err)

	if s.analyzer == nil {
		return nil, ErrCommentaryDisabled
	}
	return s.analyzer.Analyze(ctx, table, req)
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.metrics.Observe(op, start, *errp)
	if *errp != nil {
		s.metrics.RecordError(ErrorKind(*errp))
	}
}

func (s *Service) recordWarnings(warnings []contracts.Warning) {
	for _, w := range warnings {
		s.metrics.RecordError(w.Code)
	}
}

// ErrorKind classifies an error by the domain taxonomy
func ErrorKind(err error) string {
	var (
		inputErr  *contracts.InputValidationError
		weightErr *contracts.NoWeightError
		rangeErr  *contracts.RangeError
		alignErr  *contracts.DataAlignmentError
		compErr   *contracts.ComputationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inputErr):
		return "input_validation"
	case errors.As(err, &weightErr):
		return "no_weight"
	case errors.As(err, &rangeErr):
		return "range"
	case errors.As(err, &alignErr):
		return "data_alignment"
	case errors.As(err, &compErr):
		return "computation"
	case errors.Is(err, ErrCommentaryDisabled):
		return "commentary_disabled"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "upstream"
	}
}
