// Package prediction turns an indicator bundle into deterministic forecasts,
// a qualitative firm view and a textual evidence pack.
package prediction

import (
	"fmt"
	"math"
	"strings"

	"GranStocks/internal/domain/models"
)

// Horizons are the forecast horizons in trading days.
var Horizons = []int{1, 5, 20}

const (
	maxScore   = 3.0
	dailyDrift = 0.001

	rsiOversold   = 30.0
	rsiOverbought = 70.0

	minConfidence = 0.1
	maxConfidence = 0.95
)

// Score is the clamped bias score and its per-term breakdown.
func Score(b models.IndicatorBundle) (float64, map[string]float64) {
	terms := map[string]float64{
		"trend":    0,
		"slope":    0,
		"location": 0,
		"rsi":      0,
	}
	if b.SMA20.Valid && b.SMA50.Valid {
		terms["trend"] = sign(b.SMA20.Float64-b.SMA50.Float64) * 1
	}
	if b.SMA20Slope.Valid {
		terms["slope"] = sign(b.SMA20Slope.Float64) * 0.5
	}
	if b.LastClose.Valid && b.SMA50.Valid {
		terms["location"] = sign(b.LastClose.Float64-b.SMA50.Float64) * 1
	}
	if b.RSI14.Valid {
		switch {
		case b.RSI14.Float64 < rsiOversold:
			terms["rsi"] = 1.5
		case b.RSI14.Float64 > rsiOverbought:
			terms["rsi"] = -1.5
		}
	}
	s := terms["trend"] + terms["slope"] + terms["location"] + terms["rsi"]
	return math.Max(-maxScore, math.Min(maxScore, s)), terms
}

// Confidence scales |score| and penalizes volatile or drawn-down symbols.
func Confidence(score float64, b models.IndicatorBundle) float64 {
	c := math.Abs(score) / maxScore
	if b.Volatility.Valid {
		switch v := b.Volatility.Float64; {
		case v > 0.60:
			c *= 0.6
		case v > 0.40:
			c *= 0.8
		}
	}
	if b.MaxDrawdown.Valid {
		switch d := b.MaxDrawdown.Float64; {
		case d > 0.30:
			c *= 0.7
		case d > 0.20:
			c *= 0.85
		}
	}
	return math.Max(minConfidence, math.Min(maxConfidence, c))
}

// Predict forecasts the return over horizonDays. It needs a last close.
func Predict(b models.IndicatorBundle, horizonDays int) (models.Prediction, error) {
	if !b.LastClose.Valid || b.LastClose.Float64 <= 0 {
		return models.Prediction{}, fmt.Errorf("predict %s: %w", b.Symbol, models.ErrNoData)
	}
	if horizonDays <= 0 {
		return models.Prediction{}, fmt.Errorf("predict %s: horizon %d: %w", b.Symbol, horizonDays, models.ErrValidation)
	}
	score, terms := Score(b)
	pct := score * dailyDrift * float64(horizonDays) * 100

	features := map[string]float64{
		"lastClose": b.LastClose.Float64,
	}
	for k, v := range terms {
		features["term."+k] = v
	}
	for name, f := range map[string]struct {
		ok bool
		v  float64
	}{
		"sma20":       {b.SMA20.Valid, b.SMA20.Float64},
		"sma50":       {b.SMA50.Valid, b.SMA50.Float64},
		"sma20Slope":  {b.SMA20Slope.Valid, b.SMA20Slope.Float64},
		"rsi14":       {b.RSI14.Valid, b.RSI14.Float64},
		"volatility":  {b.Volatility.Valid, b.Volatility.Float64},
		"maxDrawdown": {b.MaxDrawdown.Valid, b.MaxDrawdown.Float64},
	} {
		if f.ok {
			features[name] = f.v
		}
	}

	return models.Prediction{
		HorizonDays:        horizonDays,
		Score:              score,
		Bias:               predictionBias(score),
		PredictedReturnPct: pct,
		PredictedPrice:     b.LastClose.Float64 * (1 + pct/100),
		Confidence:         Confidence(score, b),
		Features:           features,
		Explanation:        explain(terms),
	}, nil
}

// PredictAll runs every horizon in Horizons.
func PredictAll(b models.IndicatorBundle) ([]models.Prediction, error) {
	out := make([]models.Prediction, 0, len(Horizons))
	for _, h := range Horizons {
		p, err := Predict(b, h)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func predictionBias(score float64) models.Bias {
	switch {
	case score > 0:
		return models.BiasBullish
	case score < 0:
		return models.BiasBearish
	default:
		return models.BiasNeutral
	}
}

func explain(terms map[string]float64) string {
	parts := make([]string, 0, 4)
	if v := terms["trend"]; v != 0 {
		parts = append(parts, fmt.Sprintf("sma20 %s sma50 (%+.1f)", aboveBelow(v), v))
	}
	if v := terms["slope"]; v != 0 {
		parts = append(parts, fmt.Sprintf("sma20 %s (%+.1f)", risingFalling(v), v))
	}
	if v := terms["location"]; v != 0 {
		parts = append(parts, fmt.Sprintf("close %s sma50 (%+.1f)", aboveBelow(v), v))
	}
	if v := terms["rsi"]; v > 0 {
		parts = append(parts, fmt.Sprintf("rsi oversold (%+.1f)", v))
	} else if v < 0 {
		parts = append(parts, fmt.Sprintf("rsi overbought (%+.1f)", v))
	}
	if len(parts) == 0 {
		return "no directional signal"
	}
	return strings.Join(parts, "; ")
}

func aboveBelow(v float64) string {
	if v > 0 {
		return "above"
	}
	return "below"
}

func risingFalling(v float64) string {
	if v > 0 {
		return "rising"
	}
	return "falling"
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
