package screener

import (
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
	"GranStocks/pkg/config"
)

func weights(t *testing.T) config.Weights {
	t.Helper()
	c, err := config.Default()
	require.NoError(t, err)
	return c.Screener.Weights
}

func TestScoreNeutralIsBase(t *testing.T) {
	assert.Equal(t, 50.0, Score(models.ScreenerMetrics{}, weights(t)))
}

func TestScoreClampsAndSanitizes(t *testing.T) {
	w := weights(t)
	great := models.ScreenerMetrics{
		Return6M:  null.FloatFrom(5),
		TrendVs20: null.FloatFrom(1),
		Sharpe:    null.FloatFrom(10),
		Sortino:   null.FloatFrom(10),
	}
	assert.Equal(t, 100.0, Score(great, w))

	awful := models.ScreenerMetrics{
		Return6M:    null.FloatFrom(-5),
		Volatility:  null.FloatFrom(3),
		MaxDrawdown: null.FloatFrom(0.9),
		TrendVs20:   null.FloatFrom(-1),
		Sharpe:      null.FloatFrom(-10),
		Sortino:     null.FloatFrom(-10),
	}
	assert.Equal(t, 0.0, Score(awful, w))

	weird := models.ScreenerMetrics{
		Return6M:   null.FloatFrom(math.NaN()),
		Volatility: null.FloatFrom(math.Inf(1)),
		Sharpe:     null.FloatFrom(math.Inf(-1)),
	}
	s := Score(weird, w)
	assert.False(t, math.IsNaN(s))
	assert.Equal(t, 50.0, s)
}

func TestScoreComponents(t *testing.T) {
	w := weights(t)
	m := models.ScreenerMetrics{
		Return6M:    null.FloatFrom(0.1),  // +5
		Volatility:  null.FloatFrom(0.3),  // -4
		MaxDrawdown: null.FloatFrom(0.1),  // -4
		TrendVs20:   null.FloatFrom(0.02), // +2
		Sharpe:      null.FloatFrom(1),    // +5
		Sortino:     null.FloatFrom(1),    // +3
	}
	assert.InDelta(t, 57.0, Score(m, w), 1e-9)
}

func TestRiskFlags(t *testing.T) {
	m := models.ScreenerMetrics{
		Volatility:  null.FloatFrom(0.7),
		MaxDrawdown: null.FloatFrom(0.5),
		Return6M:    null.FloatFrom(-0.3),
		TrendVs20:   null.FloatFrom(-0.01),
		Bars:        50,
		DataQuality: 60,
	}
	assert.Equal(t, []string{
		FlagHighVolatility, FlagDeepDrawdown, FlagNegativeMomentum,
		FlagBelowMA20, FlagInsufficientHistory, FlagLowDataQuality,
	}, RiskFlags(m))

	clean := models.ScreenerMetrics{Bars: 300, DataQuality: 100}
	assert.Empty(t, RiskFlags(clean))
	assert.NotNil(t, RiskFlags(clean))
}

func TestComputeMetrics(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 300)
	price := 50.0
	for i := range bars {
		open := price
		price *= 1.002
		bars[i] = models.Bar{T: start.AddDate(0, 0, i).Unix(), O: open, H: price * 1.001, L: open * 0.999, C: price, V: 10}
	}
	m := ComputeMetrics(models.NewCandleSeries("UP", "test", bars))

	assert.Equal(t, 300, m.Bars)
	assert.Greater(t, m.Return6M.Float64, 0.0)
	assert.Greater(t, m.TrendVs20.Float64, 0.0)
	assert.InDelta(t, 0.0, m.MaxDrawdown.Float64, 1e-12)
	assert.Equal(t, 100.0, m.DataQuality)
	assert.Empty(t, RiskFlags(m))
	assert.Greater(t, Score(m, weights(t)), 50.0)

	assert.Equal(t, models.ScreenerMetrics{}, ComputeMetrics(models.NewCandleSeries("E", "t", nil)))
}
