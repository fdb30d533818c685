package profile

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// ValidationError 검증 실패 (로드 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks every hard constraint
func Validate(p *Profile) error {
	// === Meta ===
	if p.Meta.ProfileID == "" {
		return ValidationError{"meta.profile_id", "required"}
	}

	// === Screening ===
	if p.Screening.Percentile == nil {
		return ValidationError{"screening.percentile", "required"}
	}
	if pct := *p.Screening.Percentile; math.IsNaN(pct) || pct < 0 || pct > 100 {
		return ValidationError{"screening.percentile", fmt.Sprintf("must be in [0, 100], got %g", pct)}
	}

	seen := make(map[string]bool, len(p.Screening.Criteria))
	var sum float64
	for i, c := range p.Screening.Criteria {
		field := fmt.Sprintf("screening.criteria[%d]", i)
		if c.Name == "" {
			return ValidationError{field + ".name", "required"}
		}
		if seen[c.Name] {
			return ValidationError{field + ".name", fmt.Sprintf("duplicate criterion %q", c.Name)}
		}
		seen[c.Name] = true

		if math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) || c.Weight < 0 {
			return ValidationError{field + ".weight", "must be a finite number >= 0"}
		}
		sum += c.Weight
	}
	// 기준이 비어 있으면 기본값(앞쪽 숫자 컬럼 3개, 가중치 1.0) 사용
	if len(p.Screening.Criteria) > 0 && sum <= 0 {
		return ValidationError{"screening.criteria", "weights must sum to > 0"}
	}

	// === Comparison ===
	if p.Comparison.ReturnsStart != "" {
		if _, err := time.Parse(contracts.DateLayout, p.Comparison.ReturnsStart); err != nil {
			return ValidationError{"comparison.returns_start", "must be YYYY-MM-DD"}
		}
	}

	// === Commentary ===
	if p.Commentary.ChunkSize < 0 {
		return ValidationError{"commentary.chunk_size", "must be >= 1 (0 = server default)"}
	}

	return nil
}

// Check returns soft warnings that do not block loading
func Check(p *Profile) []Warning {
	var warnings []Warning

	if p.Screening.Percentile != nil && *p.Screening.Percentile >= 99 {
		warnings = append(warnings, Warning{
			Code:    "narrow_subset",
			Message: "percentile >= 99 usually keeps only the top few records",
		})
	}

	for _, c := range p.Screening.Criteria {
		if c.Weight == 0 {
			warnings = append(warnings, Warning{
				Code:    "zero_weight",
				Message: fmt.Sprintf("criterion %q has weight 0 and does not affect the score", c.Name),
			})
		}
	}

	if p.Commentary.ChunkSize > 50 {
		warnings = append(warnings, Warning{
			Code:    "large_chunk",
			Message: "chunk_size > 50 may exceed the completion service's request limit",
		})
	}

	return warnings
}
