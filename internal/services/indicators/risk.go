package indicators

import (
	"math"

	"github.com/guregu/null/v6"

	"GranStocks/internal/domain/models"
)

const (
	TradingDaysPerYear = 252
	RiskFreeRate       = 0.04
	MinReturns         = 20
	SixMonthBars       = 126
)

// SimpleReturns computes r_t = C_t/C_{t-1} - 1 over the last lookback returns.
// Non-positive previous closes yield a zero return.
func SimpleReturns(closes []float64, lookback int) []float64 {
	if len(closes) < 2 {
		return nil
	}
	start := 1
	if lookback > 0 && len(closes)-1 > lookback {
		start = len(closes) - lookback
	}
	out := make([]float64, 0, len(closes)-start)
	for i := start; i < len(closes); i++ {
		prev := closes[i-1]
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, closes[i]/prev-1)
	}
	return out
}

// Volatility is the annualized sample standard deviation of returns.
func Volatility(returns []float64) null.Float {
	if len(returns) < MinReturns {
		return null.Float{}
	}
	m := mean(returns)
	var ss float64
	for _, r := range returns {
		d := r - m
		ss += d * d
	}
	return null.FloatFrom(math.Sqrt(ss/float64(len(returns)-1)) * math.Sqrt(TradingDaysPerYear))
}

// Sharpe is (annualized mean return - risk free) / annualized volatility.
func Sharpe(returns []float64) null.Float {
	vol := Volatility(returns)
	if !vol.Valid || vol.Float64 == 0 {
		return null.Float{}
	}
	return null.FloatFrom((mean(returns)*TradingDaysPerYear - RiskFreeRate) / vol.Float64)
}

// Sortino replaces volatility with the downside deviation measured over
// negative-return days only.
func Sortino(returns []float64) null.Float {
	if len(returns) < MinReturns {
		return null.Float{}
	}
	var ss float64
	var neg int
	for _, r := range returns {
		if r < 0 {
			ss += r * r
			neg++
		}
	}
	if neg == 0 {
		return null.Float{}
	}
	dd := math.Sqrt(ss/float64(neg)) * math.Sqrt(TradingDaysPerYear)
	if dd == 0 {
		return null.Float{}
	}
	return null.FloatFrom((mean(returns)*TradingDaysPerYear - RiskFreeRate) / dd)
}

// MaxDrawdown is the largest peak-to-trough decline over the last window
// closes, as a fraction in [0,1].
func MaxDrawdown(closes []float64, window int) null.Float {
	if window > 0 && len(closes) > window {
		closes = closes[len(closes)-window:]
	}
	if len(closes) < 2 {
		return null.Float{}
	}
	peak := closes[0]
	var mdd float64
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			if dd := (peak - c) / peak; dd > mdd {
				mdd = dd
			}
		}
	}
	return null.FloatFrom(clamp(mdd, 0, 1))
}

// PeriodReturn is C_t / C_{t-bars} - 1.
func PeriodReturn(closes []float64, bars int) null.Float {
	if bars <= 0 || len(closes) < bars+1 {
		return null.Float{}
	}
	base := closes[len(closes)-1-bars]
	if base <= 0 {
		return null.Float{}
	}
	return null.FloatFrom(closes[len(closes)-1]/base - 1)
}

const (
	qualityZeroPrice    = 5
	qualityJump         = 10
	qualityOHLCViolated = 2
	qualityJumpRatio    = 0.5
)

// DataQuality starts at 100 and deducts per suspicious bar.
func DataQuality(s *models.CandleSeries) float64 {
	if s == nil || s.Len() == 0 {
		return 0
	}
	score := 100.0
	for i := 0; i < s.Len(); i++ {
		b := s.Bar(i)
		if b.C <= 0 || b.O <= 0 || b.H <= 0 || b.L <= 0 {
			score -= qualityZeroPrice
		}
		if i > 0 {
			prev := s.C[i-1]
			if prev > 0 && math.Abs(b.C/prev-1) > qualityJumpRatio {
				score -= qualityJump
			}
		}
		if b.H < b.L || b.H < math.Max(b.O, b.C) || b.L > math.Min(b.O, b.C) {
			score -= qualityOHLCViolated
		}
	}
	return clamp(score, 0, 100)
}
