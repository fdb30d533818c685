package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/screener/internal/analysis"
	"github.com/wonny/screener/internal/commentary"
	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/screening"
	"github.com/wonny/screener/pkg/logger"
)

// ScreenHandler handles screening and comparison endpoints
// ⭐ SSOT: 스크리닝 API 핸들러는 이 구조체에서만
type ScreenHandler struct {
	service   *analysis.Service
	chunkSize int
	logger    *logger.Logger
}

// NewScreenHandler creates a new screen handler
func NewScreenHandler(service *analysis.Service, chunkSize int, log *logger.Logger) *ScreenHandler {
	if chunkSize < 1 {
		chunkSize = commentary.DefaultChunkSize
	}
	return &ScreenHandler{
		service:   service,
		chunkSize: chunkSize,
		logger:    log,
	}
}

// ReturnsResponse is the screening (when a CSV was sent) plus the comparison
type ReturnsResponse struct {
	Screening *analysis.Screening          `json:"screening,omitempty"`
	Returns   *contracts.ReturnsComparison `json:"returns"`
}

// FundamentalsResponse is the screening plus one comparison per metric
type FundamentalsResponse struct {
	Screening    *analysis.Screening                `json:"screening,omitempty"`
	Fundamentals []contracts.FundamentalsComparison `json:"fundamentals"`
}

// CommentaryResponse is the screening plus the collaborator's answer
type CommentaryResponse struct {
	Screening  *analysis.Screening  `json:"screening"`
	Question   string               `json:"question"`
	Commentary *commentary.Analysis `json:"commentary"`
}

// GetReference returns the loaded reference data summary
// GET /api/reference
func (h *ScreenHandler) GetReference(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Reference())
}

// Screen runs normalize → score → filter
// POST /api/screen
func (h *ScreenHandler) Screen(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if errs := bindJSON(r, &req); errs != nil {
		respondValidation(w, errs)
		return
	}

	out, err := h.screen(req.CSV, &req.ScreenParams)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, out)
}

// Export downloads the screened subset as CSV with every input column
// POST /api/screen/export
func (h *ScreenHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if errs := bindJSON(r, &req); errs != nil {
		respondValidation(w, errs)
		return
	}

	out, err := h.screen(req.CSV, &req.ScreenParams)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="screened.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := screening.WriteTableCSV(w, out.Result.Filtered.Table); err != nil {
		h.logger.WithError(err).Error("Failed to write CSV export")
	}
}

// Returns compares the screened basket's cumulative returns with the universe
// POST /api/returns
func (h *ScreenHandler) Returns(w http.ResponseWriter, r *http.Request) {
	var req ReturnsRequest
	if errs := bindJSON(r, &req); errs != nil {
		respondValidation(w, errs)
		return
	}

	resp := ReturnsResponse{}
	ids, start, screened, err := h.basket(&req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp.Screening = screened

	resp.Returns, err = h.service.Returns(ids, start)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Fundamentals compares mean fundamental metrics with the universe
// POST /api/fundamentals
func (h *ScreenHandler) Fundamentals(w http.ResponseWriter, r *http.Request) {
	var req FundamentalsRequest
	if errs := bindJSON(r, &req); errs != nil {
		respondValidation(w, errs)
		return
	}

	resp := FundamentalsResponse{}
	ids, start, screened, err := h.basket(&req.ReturnsRequest)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp.Screening = screened

	resp.Fundamentals, err = h.service.Fundamentals(req.Metrics, ids, start)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Commentary asks the completion service about the screened subset
// POST /api/commentary
func (h *ScreenHandler) Commentary(w http.ResponseWriter, r *http.Request) {
	var req CommentaryRequest
	if errs := bindJSON(r, &req); errs != nil {
		respondValidation(w, errs)
		return
	}
	if !h.service.CommentaryEnabled() {
		h.fail(w, r, analysis.ErrCommentaryDisabled)
		return
	}

	out, err := h.screen(req.CSV, &req.ScreenParams)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	question := req.Question
	if req.Preset != "" {
		question = commentary.Presets[req.Preset]
	}
	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = h.chunkSize
	}

	analysisOut, err := h.service.Commentary(r.Context(), out.Result.Filtered.Table, commentary.Request{
		Question:  question,
		Columns:   req.Columns,
		ChunkSize: chunkSize,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, CommentaryResponse{
		Screening:  out,
		Question:   question,
		Commentary: analysisOut,
	})
}

func (h *ScreenHandler) screen(csv string, params *ScreenParams) (*analysis.Screening, error) {
	table, err := parseTable(csv)
	if err != nil {
		return nil, err
	}
	return h.service.Screen(table, params.Params(), params.Columns)
}

// basket resolves the IDs to compare: explicit IDs win over screening the CSV
func (h *ScreenHandler) basket(req *ReturnsRequest) ([]string, time.Time, *analysis.Screening, error) {
	start, err := startDate(req.Start)
	if err != nil {
		return nil, time.Time{}, nil, &contracts.InputValidationError{Field: "start", Message: err.Error()}
	}
	if len(req.IDs) > 0 {
		return req.IDs, start, nil, nil
	}

	out, err := h.screen(req.CSV, &req.ScreenParams)
	if err != nil {
		return nil, time.Time{}, nil, err
	}
	return out.IDs, start, out, nil
}

func (h *ScreenHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	log := h.logger.WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Warn("Request rejected")
	}
	respondJSON(w, status, errorBody(err))
}
