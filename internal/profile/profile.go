package profile

import (
	"time"

	"github.com/wonny/screener/internal/contracts"
	"github.com/wonny/screener/internal/screening"
)

// Profile is a saved screening setup: criteria, weights, percentile and
// the comparison/commentary options that go with it
type Profile struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Screening  Screening  `yaml:"screening" json:"screening"`
	Comparison Comparison `yaml:"comparison" json:"comparison"`
	Commentary Commentary `yaml:"commentary" json:"commentary"`
	Display    Display    `yaml:"display" json:"display"`
}

// Meta 메타 정보
type Meta struct {
	ProfileID   string `yaml:"profile_id" json:"profile_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// Screening Stage 1~3 파라미터
type Screening struct {
	Criteria   []Criterion `yaml:"criteria" json:"criteria"` // 순서 유지 (map 대신 slice: 해시 재현성)
	Percentile *float64    `yaml:"percentile" json:"percentile"`
}

// Criterion is one weighted numeric column
type Criterion struct {
	Name   string  `yaml:"name" json:"name"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Comparison Stage 4~5 옵션
type Comparison struct {
	ReturnsStart string   `yaml:"returns_start" json:"returns_start"` // YYYY-MM-DD, 비어있으면 전체 기간
	Fundamentals []string `yaml:"fundamentals" json:"fundamentals"`
}

// Commentary LLM 분석 옵션
type Commentary struct {
	ChunkSize int    `yaml:"chunk_size" json:"chunk_size"`
	Question  string `yaml:"question" json:"question"`
}

// Display 출력 컬럼
type Display struct {
	Columns []string `yaml:"columns" json:"columns"`
}

// Params converts the profile into pipeline parameters
func (p *Profile) Params() screening.Params {
	params := screening.Params{}
	if p.Screening.Percentile != nil {
		params.Percentile = *p.Screening.Percentile
	}
	if len(p.Screening.Criteria) == 0 {
		return params
	}

	params.Criteria = make([]string, len(p.Screening.Criteria))
	params.Weights = make(contracts.WeightConfig, len(p.Screening.Criteria))
	for i, c := range p.Screening.Criteria {
		params.Criteria[i] = c.Name
		params.Weights[c.Name] = c.Weight
	}
	return params
}

// ReturnsStart parses comparison.returns_start; zero when unset
func (p *Profile) ReturnsStart() (time.Time, error) {
	if p.Comparison.ReturnsStart == "" {
		return time.Time{}, nil
	}
	return time.Parse(contracts.DateLayout, p.Comparison.ReturnsStart)
}
