package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/commentary"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/intake"
	"github.com/wonny/screener/internal/refdata"
	"github.com/wonny/screener/internal/screening"
	"github.com/wonny/screener/pkg/logger"
	"github.com/wonny/screener/pkg/metrics"
)

const inputCSV = `ID,short_name,gics_1_sector,roe,pe
A,Alpha,Tech,10,5
B,Beta,Energy,20,3
C,Gamma,Tech,30,1
`

type echoCompleter struct{ calls int }

func (e *echoCompleter) Complete(_ context.Context, messages []contracts.Message) (string, error) {
	e.calls++
	return fmt.Sprintf("answer %d", e.calls), nil
}

func day(s string) time.Time {
	d, _ := time.Parse(contracts.DateLayout, s)
	return d
}

func testStore(t *testing.T) *refdata.Store {
	t.Helper()
	dates := []time.Time{day("2024-01-01"), day("2024-01-02"), day("2024-01-03")}
	ids := []string{"B", "C", "U"}

	returns, err := contracts.NewTimeSeriesTable("returns", dates, ids, [][]float64{
		{0.01, 0.03, 0.00},
		{0.02, 0.00, 0.01},
		{-0.01, 0.01, 0.02},
	})
	require.NoError(t, err)

	pe, err := contracts.NewTimeSeriesTable("pe", dates, ids, [][]float64{
		{10, 20, 30},
		{12, 22, 32},
		{14, 24, 34},
	})
	require.NoError(t, err)

	return &refdata.Store{
		Returns:      returns,
		Universe:     contracts.NewReferenceUniverse("Reference", ids),
		Fundamentals: map[string]*contracts.TimeSeriesTable{"pe": pe},
	}
}

func testTable(t *testing.T) *contracts.ScoreTable {
	t.Helper()
	table, err := intake.Parse(strings.NewReader(inputCSV))
	require.NoError(t, err)
	return table
}

func scrape(t *testing.T, r *metrics.Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestService_Screen(t *testing.T) {
	recorder := metrics.New()
	svc := NewService(testStore(t), nil, recorder, logger.Nop())

	out, err := svc.Screen(testTable(t), screening.Params{
		Criteria:   []string{"roe"},
		Weights:    contracts.WeightConfig{"roe": 1},
		Percentile: 50,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, out.IDs)
	assert.Equal(t, 3, out.Summary.Total)
	assert.Equal(t, 2, out.Summary.Retained)
	assert.InDelta(t, 0.5, out.Summary.Threshold, 1e-12)
	require.Len(t, out.Projection.Rows, 2)
	assert.Equal(t, "Gamma", out.Projection.Rows[0][0], "projection is sorted by score")

	body := scrape(t, recorder)
	assert.Contains(t, body, `screener_operations_total{operation="screen",outcome="success"} 1`)
	assert.Contains(t, body, "screener_last_retained_entities 2")
}

func TestService_ScreenRejected(t *testing.T) {
	recorder := metrics.New()
	svc := NewService(testStore(t), nil, recorder, logger.Nop())

	_, err := svc.Screen(testTable(t), screening.Params{Percentile: 150}, nil)
	var re *contracts.RangeError
	require.True(t, errors.As(err, &re), "got %v", err)

	body := scrape(t, recorder)
	assert.Contains(t, body, `screener_operations_total{operation="screen",outcome="error"} 1`)
	assert.Contains(t, body, `screener_errors_total{kind="range"} 1`)
}

func TestService_Returns(t *testing.T) {
	svc := NewService(testStore(t), nil, nil, logger.Nop())

	out, err := svc.Returns([]string{"B", "C", "Z"}, day("2024-01-02"))
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, out.Portfolio.Included)
	assert.Equal(t, []string{"Z"}, out.Portfolio.Missing)
	require.NotEmpty(t, out.Warnings)
	assert.Equal(t, contracts.WarnMissingIDs, out.Warnings[0].Code)

	// 2024-01-02: mean(0.02, 0.00) = 0.01, 2024-01-03: mean(-0.01, 0.01) = 0
	assert.InDelta(t, 1.01, out.Portfolio.Final(), 1e-12)
}

func TestService_Fundamentals(t *testing.T) {
	svc := NewService(testStore(t), nil, nil, logger.Nop())

	out, err := svc.Fundamentals(nil, []string{"B"}, time.Time{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "pe", out[0].Metric)
	require.NotNil(t, out[0].Portfolio.Average)
	assert.InDelta(t, 12.0, *out[0].Portfolio.Average, 1e-12)

	_, err = svc.Fundamentals([]string{"nope"}, []string{"B"}, time.Time{})
	var ve *contracts.InputValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestService_Commentary(t *testing.T) {
	table := testTable(t)

	t.Run("disabled", func(t *testing.T) {
		svc := NewService(testStore(t), nil, nil, logger.Nop())
		assert.False(t, svc.CommentaryEnabled())
		_, err := svc.Commentary(context.Background(), table, commentary.Request{Question: "q", ChunkSize: 10})
		assert.ErrorIs(t, err, ErrCommentaryDisabled)
	})

	t.Run("enabled", func(t *testing.T) {
		stub := &echoCompleter{}
		svc := NewService(testStore(t), commentary.NewAnalyzer(stub, logger.Nop()), nil, logger.Nop())
		assert.True(t, svc.CommentaryEnabled())

		out, err := svc.Commentary(context.Background(), table, commentary.Request{Question: "q", ChunkSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Chunks)
		assert.Equal(t, "answer 3", out.Answer)
		assert.Equal(t, 3, stub.calls)
	})
}

func TestService_Reference(t *testing.T) {
	svc := NewService(testStore(t), nil, nil, logger.Nop())
	ref := svc.Reference()
	assert.Equal(t, "Reference", ref.Universe)
	assert.Equal(t, 3, ref.Constituents)
	assert.Equal(t, []string{"pe"}, ref.Fundamentals)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("normalize: %w", &contracts.InputValidationError{Field: "x"}), "input_validation"},
		{&contracts.NoWeightError{}, "no_weight"},
		{&contracts.RangeError{Field: "percentile"}, "range"},
		{&contracts.DataAlignmentError{Series: "returns"}, "data_alignment"},
		{&contracts.ComputationError{Stage: "returns"}, "computation"},
		{ErrCommentaryDisabled, "commentary_disabled"},
		{context.Canceled, "canceled"},
		{errors.New("connection refused"), "upstream"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}
