package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// AssetType selects the provider routing for a symbol.
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetCrypto AssetType = "crypto"
)

// SeriesStatus mirrors the provider status flag of a candle series.
type SeriesStatus string

const (
	StatusOK     SeriesStatus = "ok"
	StatusNoData SeriesStatus = "no_data"
	StatusError  SeriesStatus = "error"
)

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Bar is a single daily OHLCV record keyed by its unix open time.
type Bar struct {
	T int64
	O float64
	H float64
	L float64
	C float64
	V float64
}

func (b Bar) finite() bool {
	for _, f := range []float64{b.O, b.H, b.L, b.C, b.V} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return b.T > 0
}

// CandleSeries stores bars as parallel arrays ordered by strictly increasing T.
// Series are treated as immutable; the slicing helpers return copies.
type CandleSeries struct {
	Symbol    string       `json:"symbol"`
	T         []int64      `json:"t"`
	O         []float64    `json:"o"`
	H         []float64    `json:"h"`
	L         []float64    `json:"l"`
	C         []float64    `json:"c"`
	V         []float64    `json:"v"`
	Status    SeriesStatus `json:"s"`
	Source    string       `json:"source,omitempty"`
	IsStale   bool         `json:"isStale"`
	FromCache bool         `json:"fromCache"`
}

// NewCandleSeries normalizes raw provider bars: non-finite bars are dropped,
// bars are sorted by time and duplicate timestamps keep the last occurrence.
func NewCandleSeries(symbol, source string, bars []Bar) *CandleSeries {
	clean := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.finite() {
			clean = append(clean, b)
		}
	}
	sort.SliceStable(clean, func(i, j int) bool { return clean[i].T < clean[j].T })

	dedup := clean[:0]
	for _, b := range clean {
		if n := len(dedup); n > 0 && dedup[n-1].T == b.T {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}

	s := fromBars(dedup)
	s.Symbol = symbol
	s.Source = source
	if s.Len() == 0 {
		s.Status = StatusNoData
	}
	return s
}

func fromBars(bars []Bar) *CandleSeries {
	s := &CandleSeries{
		T:      make([]int64, len(bars)),
		O:      make([]float64, len(bars)),
		H:      make([]float64, len(bars)),
		L:      make([]float64, len(bars)),
		C:      make([]float64, len(bars)),
		V:      make([]float64, len(bars)),
		Status: StatusOK,
	}
	for i, b := range bars {
		s.T[i], s.O[i], s.H[i], s.L[i], s.C[i], s.V[i] = b.T, b.O, b.H, b.L, b.C, b.V
	}
	return s
}

// Len returns the number of bars.
func (s *CandleSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.T)
}

// Bar returns the i-th bar.
func (s *CandleSeries) Bar(i int) Bar {
	return Bar{T: s.T[i], O: s.O[i], H: s.H[i], L: s.L[i], C: s.C[i], V: s.V[i]}
}

// Bars returns the series as a slice of bars.
func (s *CandleSeries) Bars() []Bar {
	out := make([]Bar, s.Len())
	for i := range out {
		out[i] = s.Bar(i)
	}
	return out
}

// Last returns the most recent bar.
func (s *CandleSeries) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bar(s.Len() - 1), true
}

// Slice returns a copy of bars [from, to).
func (s *CandleSeries) Slice(from, to int) *CandleSeries {
	if from < 0 {
		from = 0
	}
	if to > s.Len() {
		to = s.Len()
	}
	if from > to {
		from = to
	}
	out := fromBars(s.Bars()[from:to])
	out.Symbol, out.Source, out.IsStale, out.FromCache = s.Symbol, s.Source, s.IsStale, s.FromCache
	if out.Len() == 0 {
		out.Status = StatusNoData
	}
	return out
}

// Tail returns a copy of the last n bars.
func (s *CandleSeries) Tail(n int) *CandleSeries {
	return s.Slice(s.Len()-n, s.Len())
}

// Since returns a copy of the bars with T >= unix.
func (s *CandleSeries) Since(unix int64) *CandleSeries {
	idx := sort.Search(s.Len(), func(i int) bool { return s.T[i] >= unix })
	return s.Slice(idx, s.Len())
}

// Validate checks the parallel-array invariants.
func (s *CandleSeries) Validate() error {
	n := len(s.T)
	if len(s.O) != n || len(s.H) != n || len(s.L) != n || len(s.C) != n || len(s.V) != n {
		return fmt.Errorf("candle series %s: arrays differ in length", s.Symbol)
	}
	for i := 1; i < n; i++ {
		if s.T[i] <= s.T[i-1] {
			return fmt.Errorf("candle series %s: timestamps not strictly increasing at %d", s.Symbol, i)
		}
	}
	return nil
}
