package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// IndicatorBundle holds every computed statistic. Null means not yet computable.
type IndicatorBundle struct {
	Symbol      string     `json:"symbol"`
	AsOf        string     `json:"asOf"`
	Bars        int        `json:"bars"`
	LastClose   null.Float `json:"lastClose"`
	SMA20       null.Float `json:"sma20"`
	SMA50       null.Float `json:"sma50"`
	SMA200      null.Float `json:"sma200"`
	EMA12       null.Float `json:"ema12"`
	EMA26       null.Float `json:"ema26"`
	SMA20Slope  null.Float `json:"sma20Slope"`
	RSI14       null.Float `json:"rsi14"`
	MACD        null.Float `json:"macd"`
	MACDSignal  null.Float `json:"macdSignal"`
	MACDHist    null.Float `json:"macdHist"`
	BBUpper     null.Float `json:"bbUpper"`
	BBMiddle    null.Float `json:"bbMiddle"`
	BBLower     null.Float `json:"bbLower"`
	BBWidth     null.Float `json:"bbWidth"`
	ATR14       null.Float `json:"atr14"`
	StochK      null.Float `json:"stochK"`
	StochD      null.Float `json:"stochD"`
	Volatility  null.Float `json:"volatility"`
	Sharpe      null.Float `json:"sharpe"`
	Sortino     null.Float `json:"sortino"`
	MaxDrawdown null.Float `json:"maxDrawdown"`
	Return6M    null.Float `json:"return6m"`
	DataQuality float64    `json:"dataQuality"`
}

// IndicatorSnapshot is the stored bundle for (Symbol, Date); written once per date.
type IndicatorSnapshot struct {
	Symbol    string
	Date      string
	Bundle    IndicatorBundle
	CreatedAt time.Time
}
