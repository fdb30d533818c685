package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/intake"
	"github.com/wonny/screener/internal/refdata"
	"github.com/wonny/screener/internal/screening"
)

const maxUploadBytes = 32 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 에러 필드명은 JSON 이름으로
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError is one failed request field
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ScreenParams is one parameter set for a full recomputation
type ScreenParams struct {
	Criteria   []string           `json:"criteria" validate:"omitempty,dive,required"`
	Weights    map[string]float64 `json:"weights"`
	Percentile *float64           `json:"percentile" default:"50"`
	Columns    []string           `json:"columns"`
}

// Params converts the request into pipeline parameters
func (p *ScreenParams) Params() screening.Params {
	out := screening.Params{Criteria: p.Criteria, Percentile: *p.Percentile}
	if p.Weights != nil {
		out.Weights = contracts.WeightConfig(p.Weights)
	}
	return out
}

// ScreenRequest carries the input CSV and one parameter set
type ScreenRequest struct {
	CSV string `json:"csv" validate:"required"`
	ScreenParams
}

func (r *ScreenRequest) setCSV(csv string) { r.CSV = csv }

// ReturnsRequest screens the CSV (or takes explicit IDs) and compares returns
type ReturnsRequest struct {
	CSV   string   `json:"csv" validate:"required_without=IDs"`
	IDs   []string `json:"ids" validate:"omitempty,dive,required"`
	Start string   `json:"start" validate:"omitempty,datetime=2006-01-02"`
	ScreenParams
}

func (r *ReturnsRequest) setCSV(csv string) { r.CSV = csv }

// FundamentalsRequest is ReturnsRequest plus the metrics to compare
type FundamentalsRequest struct {
	ReturnsRequest
	Metrics []string `json:"metrics" validate:"omitempty,dive,required"`
}

// CommentaryRequest screens the CSV and asks one question about the subset
type CommentaryRequest struct {
	CSV       string `json:"csv" validate:"required"`
	Question  string `json:"question" validate:"required_without=Preset"`
	Preset    string `json:"preset" validate:"omitempty,oneof=sector_summary rationale"`
	ChunkSize int    `json:"chunk_size" validate:"omitempty,gte=1"`
	ScreenParams
}

func (r *CommentaryRequest) setCSV(csv string) { r.CSV = csv }

type csvSetter interface {
	setCSV(csv string)
}

func parseTable(csv string) (*contracts.ScoreTable, error) {
	return intake.Parse(strings.NewReader(csv))
}

// startDate parses the optional start; empty means the first available date
func startDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return refdata.ParseDate(s)
}

// bindJSON decodes, defaults and validates a request body
func bindJSON(r *http.Request, req interface{}) []ValidationError {
	if err := decodeBody(r, req); err != nil {
		return []ValidationError{{Code: "ERR_BODY", Message: err.Error()}}
	}
	return setAndValidate(req)
}

// decodeBody accepts application/json or multipart/form-data with a "file"
// part (the CSV) and an optional "params" part (JSON)
func decodeBody(r *http.Request, req interface{}) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(req); err != nil {
			return fmt.Errorf("invalid request body: %w", err)
		}
		return nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return fmt.Errorf("invalid multipart body: %w", err)
	}
	if params := r.FormValue("params"); params != "" {
		if err := json.Unmarshal([]byte(params), req); err != nil {
			return fmt.Errorf("invalid params: %w", err)
		}
	}

	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if cs, ok := req.(csvSetter); ok {
		cs.setCSV(string(data))
	}
	return nil
}

func setAndValidate(req interface{}) []ValidationError {
	if err := defaults.Set(req); err != nil {
		return []ValidationError{{Code: "ERR_DEFAULTS", Message: err.Error()}}
	}
	if err := validate.Struct(req); err != nil {
		return validationErrors(err)
	}
	return nil
}

func validationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Code:    "ERR_" + strings.ToUpper(fe.Tag()),
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", field, strings.ToLower(fe.Param()))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func respondValidation(w http.ResponseWriter, errs []ValidationError) {
	respondJSON(w, http.StatusBadRequest, ErrorBody{
		Error:  "invalid request",
		Kind:   "input_validation",
		Fields: errs,
	})
}
