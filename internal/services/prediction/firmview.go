package prediction

import (
	"fmt"

	"GranStocks/internal/domain/models"
)

const (
	RoleTechnical = "technical"
	RoleRisk      = "risk"
	RoleRegime    = "regime"

	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"

	RegimeHighVolatility = "HIGH_VOLATILITY"
	RegimeTrendingUp     = "TRENDING_UP"
	RegimeTrendingDown   = "TRENDING_DOWN"
	RegimeRangeBound     = "RANGE_BOUND"

	StanceInsufficientData = "INSUFFICIENT_DATA"
)

// BuildFirmView derives the technical, risk and regime stances.
func BuildFirmView(b models.IndicatorBundle) models.FirmView {
	score, _ := Score(b)
	return models.FirmView{
		Symbol: b.Symbol,
		Roles: []models.RoleView{
			technicalView(score),
			riskView(b),
			regimeView(b),
		},
	}
}

func technicalView(score float64) models.RoleView {
	bias := models.BiasNeutral
	switch {
	case score >= 1:
		bias = models.BiasBullish
	case score <= -1:
		bias = models.BiasBearish
	}
	return models.RoleView{
		Role:    RoleTechnical,
		Stance:  string(bias),
		Summary: fmt.Sprintf("ensemble score %.2f", score),
	}
}

func riskView(b models.IndicatorBundle) models.RoleView {
	if !b.Volatility.Valid || !b.MaxDrawdown.Valid {
		return models.RoleView{Role: RoleRisk, Stance: StanceInsufficientData, Summary: "not enough history for risk metrics"}
	}
	vol, mdd := b.Volatility.Float64, b.MaxDrawdown.Float64
	level := RiskHigh
	switch {
	case vol < 0.25 && mdd < 0.15:
		level = RiskLow
	case vol < 0.45 && mdd < 0.30:
		level = RiskModerate
	}
	return models.RoleView{
		Role:    RoleRisk,
		Stance:  level,
		Summary: fmt.Sprintf("volatility %.2f, max drawdown %.2f", vol, mdd),
	}
}

func regimeView(b models.IndicatorBundle) models.RoleView {
	view := models.RoleView{Role: RoleRegime}
	if !b.SMA20.Valid || !b.SMA20Slope.Valid || !b.LastClose.Valid {
		view.Stance = StanceInsufficientData
		view.Summary = "not enough history for trend detection"
		return view
	}
	switch {
	case (b.Volatility.Valid && b.Volatility.Float64 > 0.50) || (b.BBWidth.Valid && b.BBWidth.Float64 > 0.20):
		view.Stance = RegimeHighVolatility
	case b.LastClose.Float64 > b.SMA20.Float64 && b.SMA20Slope.Float64 > 0:
		view.Stance = RegimeTrendingUp
	case b.LastClose.Float64 < b.SMA20.Float64 && b.SMA20Slope.Float64 < 0:
		view.Stance = RegimeTrendingDown
	default:
		view.Stance = RegimeRangeBound
	}
	view.Summary = fmt.Sprintf("close %.2f vs sma20 %.2f, slope %.4f", b.LastClose.Float64, b.SMA20.Float64, b.SMA20Slope.Float64)
	return view
}
