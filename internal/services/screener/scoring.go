// Package screener scores symbols from their daily history.
package screener

import (
	"math"

	"github.com/guregu/null/v6"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/services/indicators"
	"GranStocks/pkg/config"
)

const (
	FlagHighVolatility      = "HIGH_VOLATILITY"
	FlagDeepDrawdown        = "DEEP_DRAWDOWN"
	FlagNegativeMomentum    = "NEGATIVE_MOMENTUM"
	FlagBelowMA20           = "BELOW_MA20"
	FlagInsufficientHistory = "INSUFFICIENT_HISTORY"
	FlagLowDataQuality      = "LOW_DATA_QUALITY"
)

// ComputeMetrics derives the score inputs from a series.
func ComputeMetrics(s *models.CandleSeries) models.ScreenerMetrics {
	if s.Len() == 0 {
		return models.ScreenerMetrics{}
	}
	closes := s.C
	last := closes[len(closes)-1]
	rets := indicators.SimpleReturns(closes, indicators.TradingDaysPerYear)
	m := models.ScreenerMetrics{
		Return6M:    indicators.PeriodReturn(closes, indicators.SixMonthBars),
		Volatility:  indicators.Volatility(rets),
		MaxDrawdown: indicators.MaxDrawdown(closes, indicators.TradingDaysPerYear),
		Sharpe:      indicators.Sharpe(rets),
		Sortino:     indicators.Sortino(rets),
		LastClose:   null.FloatFrom(last),
		DataQuality: indicators.DataQuality(s),
		Bars:        s.Len(),
	}
	if sma := indicators.SMA(closes, 20); sma.Valid && sma.Float64 != 0 {
		m.TrendVs20 = null.FloatFrom(last/sma.Float64 - 1)
	}
	return m
}

// Score combines the metrics into [0,100]. Null, NaN and Inf inputs
// contribute nothing.
func Score(m models.ScreenerMetrics, w config.Weights) float64 {
	score := w.Base
	score += capped(w.Momentum*val(m.Return6M), w.MomentumCap)
	score -= capped(w.Volatility*math.Max(0, val(m.Volatility)-w.VolFloor), w.VolCap)
	score -= capped(w.Drawdown*val(m.MaxDrawdown), w.DrawdownCap)
	score += capped(w.Trend*val(m.TrendVs20), w.TrendCap)
	score += capped(w.Sharpe*val(m.Sharpe), w.SharpeCap)
	score += capped(w.Sortino*val(m.Sortino), w.SortinoCap)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return w.Base
	}
	return math.Max(0, math.Min(100, score))
}

// RiskFlags lists the warnings raised by the metrics.
func RiskFlags(m models.ScreenerMetrics) []string {
	flags := []string{}
	if v := val(m.Volatility); v > 0.6 {
		flags = append(flags, FlagHighVolatility)
	}
	if v := val(m.MaxDrawdown); v > 0.4 {
		flags = append(flags, FlagDeepDrawdown)
	}
	if v := val(m.Return6M); v < -0.2 {
		flags = append(flags, FlagNegativeMomentum)
	}
	if v := val(m.TrendVs20); v < 0 {
		flags = append(flags, FlagBelowMA20)
	}
	if m.Bars < indicators.SixMonthBars {
		flags = append(flags, FlagInsufficientHistory)
	}
	if m.DataQuality < 70 {
		flags = append(flags, FlagLowDataQuality)
	}
	return flags
}

func val(f null.Float) float64 {
	if !f.Valid || math.IsNaN(f.Float64) || math.IsInf(f.Float64, 0) {
		return 0
	}
	return f.Float64
}

func capped(v, limit float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(-limit, math.Min(limit, v))
}
