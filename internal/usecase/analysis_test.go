package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/services/prediction"
)

func TestAnalyze(t *testing.T) {
	w := &fakeWindow{series: map[string]*models.CandleSeries{"AAPL": dailyBars("AAPL", 300, 0.002)}}
	a := NewAnalyzer(w)

	res, err := a.Analyze(context.Background(), models.QuoteRequest{Symbol: "aapl"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, models.AssetStock, res.AssetType)
	assert.Equal(t, 300, res.Indicators.Bars)
	assert.Len(t, res.Predictions, len(prediction.Horizons))
	assert.Len(t, res.FirmView.Roles, 3)
	assert.NotEmpty(t, res.EvidencePack)
	assert.False(t, res.IsStale)
	for _, p := range res.Predictions {
		assert.Equal(t, models.BiasBullish, p.Bias)
	}
}

func TestAnalyzeStaleAndMissing(t *testing.T) {
	stale := dailyBars("AAPL", 60, 0)
	stale.IsStale = true
	a := NewAnalyzer(&fakeWindow{series: map[string]*models.CandleSeries{"AAPL": stale}})

	res, err := a.Analyze(context.Background(), models.QuoteRequest{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.True(t, res.IsStale)

	_, err = a.Analyze(context.Background(), models.QuoteRequest{Symbol: "NOPE"})
	assert.ErrorIs(t, err, models.ErrNoData)

	_, err = a.Analyze(context.Background(), models.QuoteRequest{Symbol: "bad symbol"})
	assert.ErrorIs(t, err, models.ErrValidation)
}
