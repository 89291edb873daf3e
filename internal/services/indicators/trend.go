package indicators

import (
	"math"

	"github.com/guregu/null/v6"
)

// SMA is the mean of the last period values.
func SMA(values []float64, period int) null.Float {
	if period <= 0 || len(values) < period {
		return null.Float{}
	}
	return null.FloatFrom(mean(values[len(values)-period:]))
}

// EMASeries returns the EMA for every index from period-1 onwards, seeded with
// the SMA of the first period values. Result length is len(values)-period+1.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	ema := mean(values[:period])
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
		out = append(out, ema)
	}
	return out
}

// EMA returns the latest value of EMASeries.
func EMA(values []float64, period int) null.Float {
	s := EMASeries(values, period)
	if len(s) == 0 {
		return null.Float{}
	}
	return null.FloatFrom(s[len(s)-1])
}

// SMASlope is the average per-bar change of the SMA over the last lag bars.
func SMASlope(values []float64, period, lag int) null.Float {
	if lag <= 0 || len(values) < period+lag {
		return null.Float{}
	}
	now := SMA(values, period)
	then := SMA(values[:len(values)-lag], period)
	return null.FloatFrom((now.Float64 - then.Float64) / float64(lag))
}

// RSI uses Wilder smoothing. A window with no losses is exactly 100.
func RSI(closes []float64, period int) null.Float {
	if period <= 0 || len(closes) < period+1 {
		return null.Float{}
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		ch := closes[i] - closes[i-1]
		if ch > 0 {
			gain += ch
		} else {
			loss -= ch
		}
	}
	p := float64(period)
	avgGain, avgLoss := gain/p, loss/p
	for i := period + 1; i < len(closes); i++ {
		ch := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if ch > 0 {
			g = ch
		} else {
			l = -ch
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
	}
	if avgLoss == 0 {
		return null.FloatFrom(100)
	}
	rs := avgGain / avgLoss
	return null.FloatFrom(clamp(100-100/(1+rs), 0, 100))
}

// MACDResult is the 12/26/9 MACD triple.
type MACDResult struct {
	Line   null.Float
	Signal null.Float
	Hist   null.Float
}

// MACD computes the line from aligned fast/slow EMA series and the signal as
// an EMA over the line series.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	slowS := EMASeries(closes, slow)
	if len(slowS) == 0 || fast >= slow {
		return MACDResult{}
	}
	fastS := EMASeries(closes, fast)
	offset := slow - fast
	line := make([]float64, len(slowS))
	for i := range slowS {
		line[i] = fastS[i+offset] - slowS[i]
	}
	res := MACDResult{Line: null.FloatFrom(line[len(line)-1])}
	if sig := EMA(line, signal); sig.Valid {
		res.Signal = sig
		res.Hist = null.FloatFrom(res.Line.Float64 - sig.Float64)
	}
	return res
}

// BollingerResult holds the bands and the relative bandwidth.
type BollingerResult struct {
	Upper     null.Float
	Middle    null.Float
	Lower     null.Float
	Bandwidth null.Float
}

// Bollinger uses the population standard deviation of the last period closes.
func Bollinger(closes []float64, period int, k float64) BollingerResult {
	mid := SMA(closes, period)
	if !mid.Valid {
		return BollingerResult{}
	}
	window := closes[len(closes)-period:]
	var ss float64
	for _, c := range window {
		d := c - mid.Float64
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(period))
	res := BollingerResult{
		Upper:  null.FloatFrom(mid.Float64 + k*sd),
		Middle: mid,
		Lower:  null.FloatFrom(mid.Float64 - k*sd),
	}
	if mid.Float64 != 0 {
		res.Bandwidth = null.FloatFrom((res.Upper.Float64 - res.Lower.Float64) / mid.Float64)
	}
	return res
}

// ATR is the mean true range of the last period bars.
func ATR(high, low, close []float64, period int) null.Float {
	n := len(close)
	if period <= 0 || n < period+1 || len(high) != n || len(low) != n {
		return null.Float{}
	}
	var sum float64
	for i := n - period; i < n; i++ {
		prev := close[i-1]
		tr := math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
		sum += tr
	}
	return null.FloatFrom(sum / float64(period))
}

const stochEpsilon = 1e-9

// Stochastic returns %K over kPeriod and %D as the SMA of the last dPeriod %K values.
func Stochastic(high, low, close []float64, kPeriod, dPeriod int) (k, d null.Float) {
	n := len(close)
	if kPeriod <= 0 || n < kPeriod || len(high) != n || len(low) != n {
		return null.Float{}, null.Float{}
	}
	percentK := func(end int) float64 {
		hh, ll := math.Inf(-1), math.Inf(1)
		for i := end - kPeriod + 1; i <= end; i++ {
			hh = math.Max(hh, high[i])
			ll = math.Min(ll, low[i])
		}
		return clamp((close[end]-ll)/(hh-ll+stochEpsilon)*100, 0, 100)
	}
	k = null.FloatFrom(percentK(n - 1))
	if dPeriod <= 0 || n < kPeriod+dPeriod-1 {
		return k, null.Float{}
	}
	var sum float64
	for end := n - dPeriod; end < n; end++ {
		sum += percentK(end)
	}
	return k, null.FloatFrom(sum / float64(dPeriod))
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
