package models

import "time"

// Range is a lookback window understood by every adapter.
type Range string

const (
	Range5D  Range = "5d"
	Range1M  Range = "1mo"
	Range3M  Range = "3mo"
	Range6M  Range = "6mo"
	Range1Y  Range = "1y"
	Range2Y  Range = "2y"
	Range5Y  Range = "5y"
	Range10Y Range = "10y"
)

var rangeDays = []struct {
	r    Range
	days int
}{
	{Range5D, 5}, {Range1M, 31}, {Range3M, 92}, {Range6M, 183},
	{Range1Y, 366}, {Range2Y, 731}, {Range5Y, 1827}, {Range10Y, 3653},
}

// Ranges lists every supported range, shortest first.
func Ranges() []Range {
	out := make([]Range, len(rangeDays))
	for i, rd := range rangeDays {
		out[i] = rd.r
	}
	return out
}

// Days returns the calendar days covered by r.
func (r Range) Days() int {
	for _, rd := range rangeDays {
		if rd.r == r {
			return rd.days
		}
	}
	return 366
}

// From returns the start of the window ending at now.
func (r Range) From(now time.Time) time.Time {
	return now.AddDate(0, 0, -r.Days())
}

// RangeForDays returns the smallest range covering days.
func RangeForDays(days int) Range {
	for _, rd := range rangeDays {
		if rd.days >= days {
			return rd.r
		}
	}
	return Range10Y
}

// RangeForYears returns the smallest range covering years.
func RangeForYears(years int) Range {
	return RangeForDays(years*365 + 1)
}

// Quote is the normalized latest price of a symbol.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	ChangeAbs float64 `json:"changeAbs"`
	ChangePct float64 `json:"changePct"`
	Ts        int64   `json:"ts"`
	Source    string  `json:"source"`
	IsStale   bool    `json:"isStale"`
}

// Overview is static company or asset metadata.
type Overview struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Exchange    string  `json:"exchange,omitempty"`
	Currency    string  `json:"currency,omitempty"`
	Country     string  `json:"country,omitempty"`
	Sector      string  `json:"sector,omitempty"`
	Industry    string  `json:"industry,omitempty"`
	Description string  `json:"description,omitempty"`
	WebURL      string  `json:"webUrl,omitempty"`
	MarketCap   float64 `json:"marketCap,omitempty"`
	Source      string  `json:"source"`
	IsStale     bool    `json:"isStale"`
}

// NewsItem is one headline.
type NewsItem struct {
	ID          string `json:"id"`
	Headline    string `json:"headline"`
	Summary     string `json:"summary,omitempty"`
	URL         string `json:"url"`
	Publisher   string `json:"publisher,omitempty"`
	PublishedAt int64  `json:"publishedAt"`
}

// NewsFeed is a provider's headlines for a symbol.
type NewsFeed struct {
	Symbol  string     `json:"symbol"`
	Items   []NewsItem `json:"items"`
	Source  string     `json:"source"`
	IsStale bool       `json:"isStale"`
}
