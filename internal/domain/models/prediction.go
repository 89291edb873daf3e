package models

// Bias is the direction of the ensemble score.
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// Prediction is a deterministic forecast for one horizon.
type Prediction struct {
	HorizonDays        int                `json:"horizonDays"`
	Score              float64            `json:"score"`
	Bias               Bias               `json:"bias"`
	PredictedReturnPct float64            `json:"predictedReturnPct"`
	PredictedPrice     float64            `json:"predictedPrice"`
	Confidence         float64            `json:"confidence"`
	Features           map[string]float64 `json:"features"`
	Explanation        string             `json:"explanation"`
}

// PredictionSnapshot is keyed by (Symbol, Date, HorizonDays).
type PredictionSnapshot struct {
	Symbol     string
	Date       string
	Prediction Prediction
}

// RoleView is one qualitative role of the firm view.
type RoleView struct {
	Role    string `json:"role"`
	Stance  string `json:"stance"`
	Summary string `json:"summary"`
}

// FirmView groups the technical, risk and regime roles.
type FirmView struct {
	Symbol string     `json:"symbol"`
	Roles  []RoleView `json:"roles"`
}

// Analysis is everything derived for one symbol.
type Analysis struct {
	Symbol       string          `json:"symbol"`
	AssetType    AssetType       `json:"assetType"`
	Indicators   IndicatorBundle `json:"indicators"`
	Predictions  []Prediction    `json:"predictions"`
	FirmView     FirmView        `json:"firmView"`
	EvidencePack string          `json:"evidencePack"`
	IsStale      bool            `json:"isStale"`
}
