package indicators

import (
	"math"
	"time"

	"GranStocks/internal/domain/models"
)

// uptrend builds n daily bars growing by rate per day.
func uptrend(n int, rate float64) *models.CandleSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		price *= 1 + rate
		bars[i] = models.Bar{
			T: start.AddDate(0, 0, i).Unix(),
			O: open,
			H: math.Max(open, price) * 1.002,
			L: math.Min(open, price) * 0.998,
			C: price,
			V: 1000,
		}
	}
	return models.NewCandleSeries("TEST", "test", bars)
}

// sawtooth alternates up and down moves around 100.
func sawtooth(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 100
		} else {
			out[i] = 102
		}
	}
	return out
}
