package usecase

import (
	"context"
	"fmt"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/services/indicators"
	"GranStocks/internal/services/prediction"
)

const analysisDays = 400

// Analyzer derives indicators, predictions and the firm view for one symbol.
type Analyzer struct {
	history CandleWindow
}

func NewAnalyzer(history CandleWindow) *Analyzer {
	return &Analyzer{history: history}
}

// Analyze is computed on demand; IsStale is set when the bars came from a
// degraded fallback.
func (a *Analyzer) Analyze(ctx context.Context, req models.QuoteRequest) (*models.Analysis, error) {
	if err := checkRequest(ctx, &req); err != nil {
		return nil, err
	}
	symbol := models.NormalizeSymbol(req.Symbol)
	series, err := a.history.GetCandles(ctx, symbol, req.AssetType, analysisDays)
	if err != nil {
		return nil, err
	}
	bundle := indicators.ComputeAll(series)
	if bundle.Bars == 0 || !bundle.LastClose.Valid {
		return nil, fmt.Errorf("analyze %s: %w", symbol, models.ErrNoData)
	}
	preds, err := prediction.PredictAll(bundle)
	if err != nil {
		return nil, err
	}
	return &models.Analysis{
		Symbol:       symbol,
		AssetType:    req.AssetType,
		Indicators:   bundle,
		Predictions:  preds,
		FirmView:     prediction.BuildFirmView(bundle),
		EvidencePack: prediction.GenerateEvidencePack(bundle),
		IsStale:      series.IsStale,
	}, nil
}
