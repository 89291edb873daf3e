package finnhub

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/service/providers"
	apphttp "GranStocks/pkg/http"
)

const (
	Name           = "finnhub"
	DefaultBaseURL = "https://finnhub.io/api/v1"
)

// Config configures the Finnhub REST adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements service.MarketDataProvider against the Finnhub REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *apphttp.Client
	now     func() time.Time
}

// New creates a Finnhub adapter.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    apphttp.NewClient(apphttp.WithTimeout(cfg.Timeout)),
		now:     time.Now,
	}
}

func (c *Client) Name() string { return Name }

type fhQuote struct {
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	DP float64 `json:"dp"`
	PC float64 `json:"pc"`
	T  int64   `json:"t"`
}

func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	var q fhQuote
	if err := c.get(ctx, "/quote", map[string]string{"symbol": symbol}, &q); err != nil {
		return nil, providers.Classify(Name, "quote", err)
	}
	if q.C <= 0 || q.T == 0 {
		return nil, providers.NoData(Name, "quote")
	}
	return &models.Quote{
		Symbol:    symbol,
		Price:     q.C,
		ChangeAbs: q.D,
		ChangePct: q.DP,
		Ts:        q.T,
		Source:    Name,
	}, nil
}

type fhCandles struct {
	C []float64 `json:"c"`
	H []float64 `json:"h"`
	L []float64 `json:"l"`
	O []float64 `json:"o"`
	V []float64 `json:"v"`
	T []int64   `json:"t"`
	S string    `json:"s"`
}

func (c *Client) GetCandles(ctx context.Context, symbol string, r models.Range) (*models.CandleSeries, error) {
	now := c.now()
	params := map[string]string{
		"symbol":     symbol,
		"resolution": "D",
		"from":       strconv.FormatInt(r.From(now).Unix(), 10),
		"to":         strconv.FormatInt(now.Unix(), 10),
	}
	var raw fhCandles
	if err := c.get(ctx, "/stock/candle", params, &raw); err != nil {
		return nil, providers.Classify(Name, "candles", err)
	}
	if raw.S == "no_data" || len(raw.T) == 0 {
		return nil, providers.NoData(Name, "candles")
	}
	if raw.S != "ok" {
		return nil, providers.Malformed(Name, "candles", fmt.Errorf("status %q", raw.S))
	}
	n := len(raw.T)
	if len(raw.O) != n || len(raw.H) != n || len(raw.L) != n || len(raw.C) != n || len(raw.V) != n {
		return nil, providers.Malformed(Name, "candles", fmt.Errorf("ragged arrays for %s", symbol))
	}

	bars := make([]models.Bar, n)
	for i := range raw.T {
		bars[i] = models.Bar{T: raw.T[i], O: raw.O[i], H: raw.H[i], L: raw.L[i], C: raw.C[i], V: raw.V[i]}
	}
	s := models.NewCandleSeries(symbol, Name, bars)
	if s.Len() == 0 {
		return nil, providers.NoData(Name, "candles")
	}
	return s, nil
}

type fhProfile struct {
	Country   string  `json:"country"`
	Currency  string  `json:"currency"`
	Exchange  string  `json:"exchange"`
	Industry  string  `json:"finnhubIndustry"`
	MarketCap float64 `json:"marketCapitalization"`
	Name      string  `json:"name"`
	Ticker    string  `json:"ticker"`
	WebURL    string  `json:"weburl"`
}

func (c *Client) GetOverview(ctx context.Context, symbol string) (*models.Overview, error) {
	var p fhProfile
	if err := c.get(ctx, "/stock/profile2", map[string]string{"symbol": symbol}, &p); err != nil {
		return nil, providers.Classify(Name, "overview", err)
	}
	if p.Name == "" && p.Ticker == "" {
		return nil, providers.NoData(Name, "overview")
	}
	return &models.Overview{
		Symbol:    symbol,
		Name:      p.Name,
		Exchange:  p.Exchange,
		Currency:  p.Currency,
		Country:   p.Country,
		Industry:  p.Industry,
		WebURL:    p.WebURL,
		MarketCap: p.MarketCap * 1e6,
		Source:    Name,
	}, nil
}

type fhNews struct {
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

func (c *Client) GetNews(ctx context.Context, symbol string, limit int) (*models.NewsFeed, error) {
	now := c.now().UTC()
	params := map[string]string{
		"symbol": symbol,
		"from":   now.AddDate(0, 0, -7).Format(models.DateLayout),
		"to":     now.Format(models.DateLayout),
	}
	var raw []fhNews
	if err := c.get(ctx, "/company-news", params, &raw); err != nil {
		return nil, providers.Classify(Name, "news", err)
	}
	if len(raw) == 0 {
		return nil, providers.NoData(Name, "news")
	}
	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}
	feed := &models.NewsFeed{Symbol: symbol, Source: Name, Items: make([]models.NewsItem, 0, len(raw))}
	for _, n := range raw {
		feed.Items = append(feed.Items, models.NewsItem{
			ID:          strconv.FormatInt(n.ID, 10),
			Headline:    n.Headline,
			Summary:     n.Summary,
			URL:         n.URL,
			Publisher:   n.Source,
			PublishedAt: n.Datetime,
		})
	}
	return feed, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, dest interface{}) error {
	q := make(map[string][]string, len(params))
	for k, v := range params {
		q[k] = []string{v}
	}
	return c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         c.baseURL + path,
		Headers:     map[string]string{"X-Finnhub-Token": c.apiKey},
		QueryParams: q,
	}, dest)
}
