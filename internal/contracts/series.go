package contracts

import "time"

// CumulativePoint is one point of an equal-weighted cumulative return series
type CumulativePoint struct {
	Date       time.Time `json:"date"`
	Cumulative float64   `json:"cumulative"`
	MeanReturn *float64  `json:"mean_return,omitempty"` // nil: anchor or undefined date
	Available  int       `json:"available"`             // 해당 일자 평균에 사용된 컬럼 수
	Defined    bool      `json:"defined"`
	Anchor     bool      `json:"anchor,omitempty"`
}

// PerformanceStats summarizes a daily-compounded series
type PerformanceStats struct {
	TradingDays      int     `json:"trading_days"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Volatility       float64 `json:"volatility"`   // annualized
	MaxDrawdown      float64 `json:"max_drawdown"` // <= 0
}

// CumulativeSeries is the stage 4 output for one basket
type CumulativeSeries struct {
	Label          string            `json:"label"`
	Points         []CumulativePoint `json:"points"`
	FirstDate      time.Time         `json:"first_date"` // 실제 데이터 시작일
	LastDate       time.Time         `json:"last_date"`
	TotalReturnPct float64           `json:"total_return_pct"`
	Included       []string          `json:"included"`
	Missing        []string          `json:"missing,omitempty"`
	Gaps           []time.Time       `json:"gaps,omitempty"`
	Stats          PerformanceStats  `json:"stats"`
}

// Final returns the last cumulative value
func (s *CumulativeSeries) Final() float64 {
	if len(s.Points) == 0 {
		return 1.0
	}
	return s.Points[len(s.Points)-1].Cumulative
}

// ReturnsComparison pairs the screened basket with the reference universe
type ReturnsComparison struct {
	Start           time.Time        `json:"start"`
	Portfolio       CumulativeSeries `json:"portfolio"`
	Reference       CumulativeSeries `json:"reference"`
	ExcessReturnPct float64          `json:"excess_return_pct"`
	Warnings        []Warning        `json:"warnings,omitempty"`
}

// MeanPoint is one point of an equal-weighted fundamental metric series
type MeanPoint struct {
	Date      time.Time `json:"date"`
	Mean      *float64  `json:"mean"` // nil: no available values on this date
	Available int       `json:"available"`
}

// MeanSeries is the stage 5 output for one basket
type MeanSeries struct {
	Label     string      `json:"label"`
	Points    []MeanPoint `json:"points"`
	FirstDate time.Time   `json:"first_date"`
	LastDate  time.Time   `json:"last_date"`
	Average   *float64    `json:"average"` // 정의된 일자 평균의 시간 평균
	Included  []string    `json:"included"`
	Missing   []string    `json:"missing,omitempty"`
	Gaps      []time.Time `json:"gaps,omitempty"`
}

// FundamentalsComparison pairs basket and reference for one metric
type FundamentalsComparison struct {
	Metric    string     `json:"metric"`
	Start     time.Time  `json:"start"`
	Portfolio MeanSeries `json:"portfolio"`
	Reference MeanSeries `json:"reference"`
	Warnings  []Warning  `json:"warnings,omitempty"`
}
