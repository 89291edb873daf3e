package models

import "time"

// DateLayout is the trading-day key format of stored bars.
const DateLayout = "2006-01-02"

// TradingDate returns the UTC trading day of a unix timestamp.
func TradingDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(DateLayout)
}

// PriceBar is one stored day of OHLCV, unique per (AssetType, Symbol, Date).
type PriceBar struct {
	AssetType AssetType
	Symbol    string
	Date      string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	UpdatedAt time.Time
}

// PriceBarsFromSeries converts a series into storable rows.
func PriceBarsFromSeries(assetType AssetType, symbol string, s *CandleSeries) []PriceBar {
	rows := make([]PriceBar, 0, s.Len())
	now := time.Now().UTC()
	for i := 0; i < s.Len(); i++ {
		rows = append(rows, PriceBar{
			AssetType: assetType,
			Symbol:    symbol,
			Date:      TradingDate(s.T[i]),
			Open:      s.O[i],
			High:      s.H[i],
			Low:       s.L[i],
			Close:     s.C[i],
			Volume:    s.V[i],
			UpdatedAt: now,
		})
	}
	return rows
}

// SeriesFromPriceBars builds a series from stored rows (ascending by date).
func SeriesFromPriceBars(symbol string, rows []PriceBar) *CandleSeries {
	bars := make([]Bar, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse(DateLayout, r.Date)
		if err != nil {
			continue
		}
		bars = append(bars, Bar{T: d.Unix(), O: r.Open, H: r.High, L: r.Low, C: r.Close, V: r.Volume})
	}
	return NewCandleSeries(symbol, "history", bars)
}

// CacheStatus is the backfill state of a symbol.
type CacheStatus string

const (
	CachePending CacheStatus = "PENDING"
	CacheReady   CacheStatus = "READY"
	CacheFailed  CacheStatus = "FAILED"
)

// SymbolCacheState tracks stored coverage for (AssetType, Symbol).
type SymbolCacheState struct {
	AssetType     AssetType
	Symbol        string
	Status        CacheStatus
	EarliestDate  string
	LatestDate    string
	BarCount      int
	LastAttemptAt time.Time
	LastSuccessAt time.Time
	LastError     string
}
