package prediction

import (
	"fmt"
	"math"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"GranStocks/internal/domain/models"
)

// GenerateEvidencePack renders the bundle as fixed-precision key/value lines.
// The output depends only on the bundle.
func GenerateEvidencePack(b models.IndicatorBundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "symbol: %s\n", b.Symbol)
	fmt.Fprintf(&sb, "as_of: %s\n", orNA(b.AsOf))
	fmt.Fprintf(&sb, "bars: %d\n", b.Bars)

	section := func(name string, rows ...evidenceRow) {
		fmt.Fprintf(&sb, "[%s]\n", name)
		for _, r := range rows {
			fmt.Fprintf(&sb, "%s: %s\n", r.key, fixed(r.val, r.places))
		}
	}
	section("price",
		evidenceRow{"last_close", b.LastClose, 4},
		evidenceRow{"return_6m", b.Return6M, 4},
	)
	section("trend",
		evidenceRow{"sma20", b.SMA20, 4},
		evidenceRow{"sma50", b.SMA50, 4},
		evidenceRow{"sma200", b.SMA200, 4},
		evidenceRow{"ema12", b.EMA12, 4},
		evidenceRow{"ema26", b.EMA26, 4},
		evidenceRow{"sma20_slope", b.SMA20Slope, 6},
		evidenceRow{"macd", b.MACD, 4},
		evidenceRow{"macd_signal", b.MACDSignal, 4},
		evidenceRow{"macd_hist", b.MACDHist, 4},
	)
	section("oscillators",
		evidenceRow{"rsi14", b.RSI14, 2},
		evidenceRow{"stoch_k", b.StochK, 2},
		evidenceRow{"stoch_d", b.StochD, 2},
	)
	section("bands",
		evidenceRow{"bb_upper", b.BBUpper, 4},
		evidenceRow{"bb_middle", b.BBMiddle, 4},
		evidenceRow{"bb_lower", b.BBLower, 4},
		evidenceRow{"bb_width", b.BBWidth, 4},
		evidenceRow{"atr14", b.ATR14, 4},
	)
	section("risk",
		evidenceRow{"volatility", b.Volatility, 4},
		evidenceRow{"sharpe", b.Sharpe, 4},
		evidenceRow{"sortino", b.Sortino, 4},
		evidenceRow{"max_drawdown", b.MaxDrawdown, 4},
	)
	fmt.Fprintf(&sb, "[quality]\ndata_quality: %s\n", decimal.NewFromFloat(b.DataQuality).StringFixed(1))
	return sb.String()
}

type evidenceRow struct {
	key    string
	val    null.Float
	places int32
}

func fixed(v null.Float, places int32) string {
	if !v.Valid || math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v.Float64).StringFixed(places)
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
