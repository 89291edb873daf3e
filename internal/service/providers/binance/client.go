package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/service/providers"
	apphttp "GranStocks/pkg/http"
)

const (
	Name           = "binance"
	DefaultBaseURL = "https://api.binance.com"

	klineLimit = 1000
)

// Config configures the Binance spot adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client reads Binance public spot market data. Prices are decimal strings.
type Client struct {
	baseURL string
	http    *apphttp.Client
	now     func() time.Time
}

// New creates a Binance adapter.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    apphttp.NewClient(apphttp.WithTimeout(cfg.Timeout)),
		now:     time.Now,
	}
}

func (c *Client) Name() string { return Name }

// Pair maps a canonical crypto symbol (BTC-USD, ETH/USDT, SOLUSDT) to a
// Binance pair; USD quotes trade as USDT.
func Pair(symbol string) string {
	s := strings.ToUpper(strings.NewReplacer("-", "", "/", "").Replace(symbol))
	if strings.HasSuffix(s, "USD") {
		s += "T"
	}
	return s
}

type ticker24h struct {
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	CloseTime          int64  `json:"closeTime"`
}

func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	var t ticker24h
	if err := c.get(ctx, "/api/v3/ticker/24hr", map[string]string{"symbol": Pair(symbol)}, &t); err != nil {
		return nil, c.classify("quote", err)
	}
	price, err := decimal.NewFromString(t.LastPrice)
	if err != nil {
		return nil, providers.Malformed(Name, "quote", fmt.Errorf("lastPrice %q: %w", t.LastPrice, err))
	}
	if !price.IsPositive() {
		return nil, providers.NoData(Name, "quote")
	}
	q := &models.Quote{
		Symbol: symbol,
		Price:  price.InexactFloat64(),
		Ts:     t.CloseTime / 1000,
		Source: Name,
	}
	if d, err := decimal.NewFromString(t.PriceChange); err == nil {
		q.ChangeAbs = d.InexactFloat64()
	}
	if d, err := decimal.NewFromString(t.PriceChangePercent); err == nil {
		q.ChangePct = d.InexactFloat64()
	}
	return q, nil
}

func (c *Client) GetCandles(ctx context.Context, symbol string, r models.Range) (*models.CandleSeries, error) {
	now := c.now().UTC()
	start := r.From(now).UnixMilli()
	end := now.UnixMilli()
	pair := Pair(symbol)

	var bars []models.Bar
	for start < end {
		var rows [][]json.RawMessage
		err := c.get(ctx, "/api/v3/klines", map[string]string{
			"symbol":    pair,
			"interval":  "1d",
			"startTime": strconv.FormatInt(start, 10),
			"endTime":   strconv.FormatInt(end, 10),
			"limit":     strconv.Itoa(klineLimit),
		}, &rows)
		if err != nil {
			return nil, c.classify("candles", err)
		}
		if len(rows) == 0 {
			break
		}
		var lastOpen int64
		for _, row := range rows {
			b, openMs, err := parseKline(row)
			if err != nil {
				return nil, providers.Malformed(Name, "candles", err)
			}
			bars = append(bars, b)
			lastOpen = openMs
		}
		if len(rows) < klineLimit {
			break
		}
		start = lastOpen + 1
	}

	s := models.NewCandleSeries(symbol, Name, bars)
	if s.Len() == 0 {
		return nil, providers.NoData(Name, "candles")
	}
	return s, nil
}

// parseKline reads [openTime, open, high, low, close, volume, ...].
func parseKline(row []json.RawMessage) (models.Bar, int64, error) {
	if len(row) < 6 {
		return models.Bar{}, 0, fmt.Errorf("kline has %d fields", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return models.Bar{}, 0, fmt.Errorf("kline open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.Bar{}, 0, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Bar{}, 0, fmt.Errorf("kline field %d %q: %w", i+1, s, err)
		}
		vals[i] = d.InexactFloat64()
	}
	return models.Bar{T: openMs / 1000, O: vals[0], H: vals[1], L: vals[2], C: vals[3], V: vals[4]}, openMs, nil
}

func (c *Client) GetOverview(context.Context, string) (*models.Overview, error) {
	return nil, providers.Unsupported(Name, "overview")
}

func (c *Client) GetNews(context.Context, string, int) (*models.NewsFeed, error) {
	return nil, providers.Unsupported(Name, "news")
}

// classify treats Binance's invalid-symbol answer (400, code -1121) as no data.
func (c *Client) classify(op string, err error) error {
	var se *apphttp.StatusError
	if errors.As(err, &se) && se.StatusCode == 400 && strings.Contains(se.Body, "-1121") {
		return models.NewProviderError(Name, op, se.StatusCode, models.ErrNoData)
	}
	return providers.Classify(Name, op, err)
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, dest interface{}) error {
	q := make(map[string][]string, len(params))
	for k, v := range params {
		q[k] = []string{v}
	}
	return c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: q,
	}, dest)
}
