package aggregate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/screener/internal/contracts"
)

// TradingDaysPerYear is used for annualization
const TradingDaysPerYear = 252

// Performance summarizes a series of daily basket returns
func Performance(daily []float64) contracts.PerformanceStats {
	stats := contracts.PerformanceStats{TradingDays: len(daily)}
	if len(daily) == 0 {
		return stats
	}

	stats.AnnualizedReturn = annualize(totalReturn(daily), len(daily))
	stats.Volatility = volatility(daily)
	stats.MaxDrawdown = maxDrawdown(daily)
	return stats
}

// totalReturn calculates compounded return
func totalReturn(daily []float64) float64 {
	cum := 1.0
	for _, r := range daily {
		cum *= 1 + r
	}
	return cum - 1
}

// annualize converts a total return over days trading days to a yearly rate
func annualize(total float64, days int) float64 {
	if days == 0 || total <= -1 {
		return -1
	}
	return math.Pow(1+total, TradingDaysPerYear/float64(days)) - 1
}

// volatility is the annualized sample standard deviation
func volatility(daily []float64) float64 {
	if len(daily) < 2 {
		return 0
	}
	return stat.StdDev(daily, nil) * math.Sqrt(TradingDaysPerYear)
}

// maxDrawdown is the worst peak-to-trough decline (<= 0)
func maxDrawdown(daily []float64) float64 {
	cum, peak, maxDD := 1.0, 1.0, 0.0
	for _, r := range daily {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if dd := (cum - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
