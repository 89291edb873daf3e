package models

// QuoteRequest is the validated input of a quote lookup.
type QuoteRequest struct {
	Symbol    string    `json:"symbol" validate:"required,ticker"`
	AssetType AssetType `json:"assetType" default:"stock" validate:"oneof=stock crypto"`
}

// CandlesRequest is the validated input of a candle lookup.
type CandlesRequest struct {
	Symbol    string    `json:"symbol" validate:"required,ticker"`
	AssetType AssetType `json:"assetType" default:"stock" validate:"oneof=stock crypto"`
	Range     Range     `json:"range" default:"1y" validate:"oneof=5d 1mo 3mo 6mo 1y 2y 5y 10y"`
}

// WarmRequest asks the warm queue to backfill a symbol.
type WarmRequest struct {
	Symbol    string    `json:"symbol" validate:"required,ticker"`
	AssetType AssetType `json:"assetType" default:"stock" validate:"oneof=stock crypto"`
}

// Key deduplicates queued warm requests.
func (r WarmRequest) Key() string { return string(r.AssetType) + ":" + r.Symbol }
