package contracts

import (
	"context"
	"time"
)

// Message is one chat turn sent to a completion service
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer produces a text completion for a conversation
// ⭐ SSOT: 커멘터리 외부 협력자 인터페이스 (테스트는 stub 구현 사용)
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ReferenceSource loads reference data once at startup
// ⭐ SSOT: CSV 파일 / Postgres 둘 다 이 인터페이스 구현
type ReferenceSource interface {
	LoadReturns(ctx context.Context) (*TimeSeriesTable, error)
	LoadUniverse(ctx context.Context) (*ReferenceUniverse, error)
	LoadFundamentals(ctx context.Context) (map[string]*TimeSeriesTable, error)
}

// ReferenceSummary describes the loaded reference data
type ReferenceSummary struct {
	Universe     string    `json:"universe"`
	Constituents int       `json:"constituents"`
	ReturnsIDs   int       `json:"returns_ids"`
	ReturnsDates int       `json:"returns_dates"`
	ReturnsFrom  time.Time `json:"returns_from"`
	ReturnsTo    time.Time `json:"returns_to"`
	Fundamentals []string  `json:"fundamentals"`
	UncoveredIDs int       `json:"uncovered_ids"` // 유니버스 중 수익률 컬럼이 없는 ID 수
}
