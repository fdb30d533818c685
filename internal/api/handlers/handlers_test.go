package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/screener/internal/analysis"
	"github.com/wonny/screener/internal/commentary"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/external/llm"
	"github.com/wonny/screener/internal/refdata"
	"github.com/wonny/screener/pkg/logger"
)

const inputCSV = "ID,short_name,gics_1_sector,roe,pe\n" +
	"A,Alpha,Tech,10,5\n" +
	"B,Beta,Energy,20,3\n" +
	"C,Gamma,Tech,30,1\n"

type fixedCompleter struct{ answer string }

func (f fixedCompleter) Complete(context.Context, []contracts.Message) (string, error) {
	return f.answer, nil
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

func newHandler(t *testing.T, completer contracts.Completer) *ScreenHandler {
	t.Helper()
	var analyzer *commentary.Analyzer
	if completer != nil {
		analyzer = commentary.NewAnalyzer(completer, logger.Nop())
	}
	svc := analysis.NewService(testStore(t), analyzer, nil, logger.Nop())
	return NewScreenHandler(svc, 10, logger.Nop())
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestScreen(t *testing.T) {
	h := newHandler(t, nil)

	rec := postJSON(t, h.Screen, map[string]interface{}{
		"csv":      inputCSV,
		"criteria": []string{"roe"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out analysis.Screening
	decode(t, rec, &out)
	assert.Equal(t, []string{"B", "C"}, out.IDs)
	assert.Equal(t, 50.0, out.Params.Percentile, "percentile defaults to 50")
	assert.Equal(t, []string{"short_name", "Composite_Score", "gics_1_sector"}, out.Projection.Columns)
}

func TestScreen_ExplicitZeroPercentile(t *testing.T) {
	h := newHandler(t, nil)

	rec := postJSON(t, h.Screen, map[string]interface{}{
		"csv":        inputCSV,
		"criteria":   []string{"roe"},
		"percentile": 0,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var out analysis.Screening
	decode(t, rec, &out)
	assert.Len(t, out.IDs, 3)
}

func TestScreen_Errors(t *testing.T) {
	h := newHandler(t, nil)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		kind   string
	}{
		{"missing csv", map[string]interface{}{}, http.StatusBadRequest, "input_validation"},
		{"percentile out of range", map[string]interface{}{"csv": inputCSV, "percentile": 101}, http.StatusUnprocessableEntity, "range"},
		{"all weights zero", map[string]interface{}{"csv": inputCSV, "criteria": []string{"roe"}, "weights": map[string]float64{"roe": 0}}, http.StatusUnprocessableEntity, "no_weight"},
		{"unknown criterion", map[string]interface{}{"csv": inputCSV, "criteria": []string{"nope"}}, http.StatusBadRequest, "input_validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Screen, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body ErrorBody
			decode(t, rec, &body)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestScreen_Multipart(t *testing.T) {
	h := newHandler(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "input.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(inputCSV))
	require.NoError(t, mw.WriteField("params", `{"criteria":["roe"],"percentile":100}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/screen", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Screen(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out analysis.Screening
	decode(t, rec, &out)
	assert.Equal(t, []string{"C"}, out.IDs)
}

func TestExport(t *testing.T) {
	h := newHandler(t, nil)

	rec := postJSON(t, h.Export, map[string]interface{}{"csv": inputCSV, "criteria": []string{"roe"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "screened.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID,short_name,gics_1_sector,roe,pe"))
	assert.True(t, strings.HasPrefix(lines[1], "B,Beta"))
}

func TestReturns(t *testing.T) {
	h := newHandler(t, nil)

	t.Run("screened basket", func(t *testing.T) {
		rec := postJSON(t, h.Returns, map[string]interface{}{
			"csv":      inputCSV,
			"criteria": []string{"roe"},
			"start":    "2024-01-02",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out ReturnsResponse
		decode(t, rec, &out)
		require.NotNil(t, out.Screening)
		assert.Equal(t, []string{"B", "C"}, out.Returns.Portfolio.Included)
		assert.InDelta(t, 1.01, out.Returns.Portfolio.Final(), 1e-12)
	})

	t.Run("explicit ids", func(t *testing.T) {
		rec := postJSON(t, h.Returns, map[string]interface{}{"ids": []string{"U"}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out ReturnsResponse
		decode(t, rec, &out)
		assert.Nil(t, out.Screening)
		assert.Equal(t, []string{"U"}, out.Returns.Portfolio.Included)
	})

	t.Run("start after data", func(t *testing.T) {
		rec := postJSON(t, h.Returns, map[string]interface{}{"ids": []string{"B"}, "start": "2025-01-01"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var body ErrorBody
		decode(t, rec, &body)
		assert.Equal(t, "range", body.Kind)
		assert.Equal(t, "start_date", body.Field)
	})

	t.Run("bad date format", func(t *testing.T) {
		rec := postJSON(t, h.Returns, map[string]interface{}{"ids": []string{"B"}, "start": "01/02/2024"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body ErrorBody
		decode(t, rec, &body)
		require.Len(t, body.Fields, 1)
		assert.Equal(t, "start", body.Fields[0].Field)
	})

	t.Run("neither csv nor ids", func(t *testing.T) {
		rec := postJSON(t, h.Returns, map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFundamentals(t *testing.T) {
	h := newHandler(t, nil)

	rec := postJSON(t, h.Fundamentals, map[string]interface{}{
		"ids":     []string{"B", "C"},
		"metrics": []string{"pe"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out FundamentalsResponse
	decode(t, rec, &out)
	require.Len(t, out.Fundamentals, 1)
	require.NotNil(t, out.Fundamentals[0].Portfolio.Average)
	assert.InDelta(t, 17.0, *out.Fundamentals[0].Portfolio.Average, 1e-12)
}

func TestCommentary(t *testing.T) {
	t.Run("preset", func(t *testing.T) {
		h := newHandler(t, fixedCompleter{answer: "Tech and energy."})
		rec := postJSON(t, h.Commentary, map[string]interface{}{
			"csv":      inputCSV,
			"criteria": []string{"roe"},
			"preset":   "sector_summary",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out CommentaryResponse
		decode(t, rec, &out)
		assert.Equal(t, commentary.QuestionSectorSummary, out.Question)
		assert.Equal(t, "Tech and energy.", out.Commentary.Answer)
		assert.Equal(t, 1, out.Commentary.Chunks)
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHandler(t, nil)
		rec := postJSON(t, h.Commentary, map[string]interface{}{"csv": inputCSV, "question": "why?"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("missing question", func(t *testing.T) {
		h := newHandler(t, fixedCompleter{})
		rec := postJSON(t, h.Commentary, map[string]interface{}{"csv": inputCSV})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown preset", func(t *testing.T) {
		h := newHandler(t, fixedCompleter{})
		rec := postJSON(t, h.Commentary, map[string]interface{}{"csv": inputCSV, "preset": "weather"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, errorStatus(llm.ErrUnavailable))
	assert.Equal(t, http.StatusBadGateway, errorStatus(errors.New("upstream")))
	assert.Equal(t, http.StatusGatewayTimeout, errorStatus(context.DeadlineExceeded))
}
