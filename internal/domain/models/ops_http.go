package models

// Requests of the ops HTTP endpoints.

type ScreenerResultsRequest struct {
	UniverseType string `param:"type" json:"type" validate:"required,max=64"`
	UniverseName string `param:"name" json:"name" validate:"required,max=64"`
	Date         string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Limit        int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type ScreenerRunRequest struct {
	UniverseType string `param:"type" json:"type" validate:"required,max=64"`
	UniverseName string `param:"name" json:"name" validate:"required,max=64"`
	Date         string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type SymbolPathRequest struct {
	AssetType AssetType `param:"assetType" json:"assetType" validate:"oneof=stock crypto"`
	Symbol    string    `param:"symbol" json:"symbol" validate:"required,ticker"`
}

// ScreenerResults is the body of GET /api/v1/screener/:type/:name.
type ScreenerResults struct {
	UniverseType string             `json:"universeType"`
	UniverseName string             `json:"universeName"`
	Date         string             `json:"date"`
	Job          *JobState          `json:"job,omitempty"`
	Rows         []ScreenerSnapshot `json:"rows"`
}
