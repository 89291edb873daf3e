// Package indicators computes technical and risk statistics over daily bars.
// Every function returns a null value instead of NaN when history is short.
package indicators

import (
	"github.com/guregu/null/v6"

	"GranStocks/internal/domain/models"
)

const drawdownWindow = TradingDaysPerYear

// ComputeAll evaluates the full indicator set on s.
func ComputeAll(s *models.CandleSeries) models.IndicatorBundle {
	if s == nil || s.Len() == 0 {
		return models.IndicatorBundle{}
	}
	closes := s.C
	b := models.IndicatorBundle{
		Symbol:      s.Symbol,
		AsOf:        models.TradingDate(s.T[s.Len()-1]),
		Bars:        s.Len(),
		LastClose:   null.FloatFrom(closes[len(closes)-1]),
		SMA20:       SMA(closes, 20),
		SMA50:       SMA(closes, 50),
		SMA200:      SMA(closes, 200),
		EMA12:       EMA(closes, 12),
		EMA26:       EMA(closes, 26),
		SMA20Slope:  SMASlope(closes, 20, 5),
		RSI14:       RSI(closes, 14),
		ATR14:       ATR(s.H, s.L, closes, 14),
		Return6M:    PeriodReturn(closes, SixMonthBars),
		MaxDrawdown: MaxDrawdown(closes, drawdownWindow),
		DataQuality: DataQuality(s),
	}

	macd := MACD(closes, 12, 26, 9)
	b.MACD, b.MACDSignal, b.MACDHist = macd.Line, macd.Signal, macd.Hist

	bb := Bollinger(closes, 20, 2)
	b.BBUpper, b.BBMiddle, b.BBLower, b.BBWidth = bb.Upper, bb.Middle, bb.Lower, bb.Bandwidth

	b.StochK, b.StochD = Stochastic(s.H, s.L, closes, 14, 3)

	rets := SimpleReturns(closes, TradingDaysPerYear)
	b.Volatility = Volatility(rets)
	b.Sharpe = Sharpe(rets)
	b.Sortino = Sortino(rets)
	return b
}
