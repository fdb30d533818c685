package commentary

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/pkg/logger"
)

// DefaultChunkSize is the rows-per-request default
const DefaultChunkSize = 10

// Request is one commentary question over a screened table
type Request struct {
	Question  string
	Columns   []string // 비어있으면 테이블의 모든 컬럼
	ChunkSize int
}

// Analysis is the collaborator's answer plus how it was produced
type Analysis struct {
	Answer     string   `json:"answer"`
	Chunks     int      `json:"chunks"`
	Responses  []string `json:"responses"` // chunk 별 응답
	Summarized bool     `json:"summarized"`
}

// Analyzer drives the chunk → complete → summarize protocol
// ⭐ SSOT: 외부 completion 서비스 호출 순서는 여기서만
type Analyzer struct {
	completer contracts.Completer
	logger    *logger.Logger
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(completer contracts.Completer, logger *logger.Logger) *Analyzer {
	return &Analyzer{
		completer: completer,
		logger:    logger,
	}
}

// Analyze submits every chunk with the question and, when there is more
// than one chunk, one summary request over the concatenated responses
func (a *Analyzer) Analyze(ctx context.Context, table *contracts.ScoreTable, req Request) (*Analysis, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, &contracts.InputValidationError{Field: "question", Message: "required"}
	}
	if table == nil || table.Len() == 0 {
		return nil, &contracts.InputValidationError{Field: "table", Message: "no records to analyze"}
	}

	columns, err := resolveColumns(table, req.Columns)
	if err != nil {
		return nil, err
	}

	chunks, err := Chunk(table.Records, req.ChunkSize)
	if err != nil {
		return nil, err
	}

	log := a.logger.WithFields(map[string]interface{}{
		"records":    table.Len(),
		"chunks":     len(chunks),
		"chunk_size": req.ChunkSize,
	})

	responses := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		messages := []contracts.Message{
			{Role: contracts.RoleSystem, Content: SystemPrompt},
			{Role: contracts.RoleUser, Content: chunkPrompt(i+1, len(chunks), FormatChunk(chunk, columns), req.Question)},
		}

		resp, err := a.completer.Complete(ctx, messages)
		if err != nil {
			log.WithError(err).WithField("chunk", i+1).Error("Chunk completion failed")
			return nil, fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}
		responses = append(responses, resp)
	}

	result := &Analysis{
		Answer:    strings.Join(responses, "\n\n"),
		Chunks:    len(chunks),
		Responses: responses,
	}

	if len(chunks) > 1 {
		summary, err := a.completer.Complete(ctx, []contracts.Message{
			{Role: contracts.RoleSystem, Content: SystemPrompt},
			{Role: contracts.RoleUser, Content: summaryPrompt(responses)},
		})
		if err != nil {
			log.WithError(err).Error("Summary completion failed")
			return nil, fmt.Errorf("summary: %w", err)
		}
		result.Answer = summary
		result.Summarized = true
	}

	log.Info("Commentary completed")
	return result, nil
}

// resolveColumns defaults to every table column and rejects unknown ones
func resolveColumns(table *contracts.ScoreTable, columns []string) ([]string, error) {
	if len(columns) == 0 {
		return table.Columns, nil
	}
	for _, c := range columns {
		if !table.HasColumn(c) {
			return nil, &contracts.InputValidationError{Field: c, Message: "column does not exist"}
		}
	}
	return columns, nil
}
