package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/service/providers"
	apphttp "GranStocks/pkg/http"
	"GranStocks/pkg/util"
)

const (
	Name           = "alphavantage"
	DefaultBaseURL = "https://www.alphavantage.co"
)

// Config configures the Alpha Vantage adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements service.MarketDataProvider against Alpha Vantage. Every
// numeric field arrives as a string and is parsed through decimal.
type Client struct {
	apiKey  string
	baseURL string
	http    *apphttp.Client
}

// New creates an Alpha Vantage adapter.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    apphttp.NewClient(apphttp.WithTimeout(cfg.Timeout)),
	}
}

func (c *Client) Name() string { return Name }

// query runs function and returns the top-level object. Throttle notes and
// error messages come back with status 200 and are mapped here.
func (c *Client) query(ctx context.Context, op string, params map[string]string) (map[string]json.RawMessage, error) {
	q := map[string][]string{"apikey": {c.apiKey}}
	for k, v := range params {
		q[k] = []string{v}
	}
	var body map[string]json.RawMessage
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         c.baseURL + "/query",
		QueryParams: q,
	}, &body)
	if err != nil {
		return nil, providers.Classify(Name, op, err)
	}
	if _, ok := body["Note"]; ok {
		return nil, models.NewProviderError(Name, op, 0, models.ErrRateLimited)
	}
	if raw, ok := body["Information"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		if strings.Contains(strings.ToLower(msg), "rate limit") || strings.Contains(msg, "requests per") {
			return nil, models.NewProviderError(Name, op, 0, models.ErrRateLimited)
		}
		return nil, providers.Malformed(Name, op, fmt.Errorf("information: %s", msg))
	}
	if _, ok := body["Error Message"]; ok {
		return nil, providers.NoData(Name, op)
	}
	return body, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

type globalQuote struct {
	Symbol        string `json:"01. symbol"`
	Price         string `json:"05. price"`
	LatestDay     string `json:"07. latest trading day"`
	Change        string `json:"09. change"`
	ChangePercent string `json:"10. change percent"`
}

func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	body, err := c.query(ctx, "quote", map[string]string{"function": "GLOBAL_QUOTE", "symbol": symbol})
	if err != nil {
		return nil, err
	}
	var gq globalQuote
	if raw, ok := body["Global Quote"]; ok {
		if err := json.Unmarshal(raw, &gq); err != nil {
			return nil, providers.Malformed(Name, "quote", err)
		}
	}
	if gq.Price == "" {
		return nil, providers.NoData(Name, "quote")
	}

	price, err := parseFloat(gq.Price)
	if err != nil {
		return nil, providers.Malformed(Name, "quote", fmt.Errorf("price %q: %w", gq.Price, err))
	}
	q := &models.Quote{Symbol: symbol, Price: price, Source: Name}
	if v, err := parseFloat(gq.Change); err == nil {
		q.ChangeAbs = v
	}
	if v, err := parseFloat(gq.ChangePercent); err == nil {
		q.ChangePct = v
	}
	if d, err := time.Parse(models.DateLayout, gq.LatestDay); err == nil {
		q.Ts = d.Unix()
	}
	return q, nil
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func (c *Client) GetCandles(ctx context.Context, symbol string, r models.Range) (*models.CandleSeries, error) {
	size := "compact"
	if r.Days() > 140 {
		size = "full"
	}
	body, err := c.query(ctx, "candles", map[string]string{
		"function":   "TIME_SERIES_DAILY",
		"symbol":     symbol,
		"outputsize": size,
	})
	if err != nil {
		return nil, err
	}
	raw, ok := body["Time Series (Daily)"]
	if !ok {
		return nil, providers.NoData(Name, "candles")
	}
	var series map[string]dailyBar
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, providers.Malformed(Name, "candles", err)
	}

	from := r.From(time.Now().UTC()).Unix()
	bars := make([]models.Bar, 0, len(series))
	for day, b := range series {
		d, err := time.Parse(models.DateLayout, day)
		if err != nil {
			return nil, providers.Malformed(Name, "candles", fmt.Errorf("date %q: %w", day, err))
		}
		if d.Unix() < from {
			continue
		}
		bar := models.Bar{T: d.Unix()}
		for _, f := range []struct {
			dst *float64
			src string
		}{{&bar.O, b.Open}, {&bar.H, b.High}, {&bar.L, b.Low}, {&bar.C, b.Close}, {&bar.V, b.Volume}} {
			v, err := parseFloat(f.src)
			if err != nil {
				return nil, providers.Malformed(Name, "candles", fmt.Errorf("%s %s: %w", symbol, day, err))
			}
			*f.dst = v
		}
		bars = append(bars, bar)
	}
	s := models.NewCandleSeries(symbol, Name, bars)
	if s.Len() == 0 {
		return nil, providers.NoData(Name, "candles")
	}
	return s, nil
}

type overview struct {
	Symbol      string `json:"Symbol"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Exchange    string `json:"Exchange"`
	Currency    string `json:"Currency"`
	Country     string `json:"Country"`
	Sector      string `json:"Sector"`
	Industry    string `json:"Industry"`
	MarketCap   string `json:"MarketCapitalization"`
}

func (c *Client) GetOverview(ctx context.Context, symbol string) (*models.Overview, error) {
	body, err := c.query(ctx, "overview", map[string]string{"function": "OVERVIEW", "symbol": symbol})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, providers.Malformed(Name, "overview", err)
	}
	var o overview
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, providers.Malformed(Name, "overview", err)
	}
	if o.Name == "" {
		return nil, providers.NoData(Name, "overview")
	}
	out := &models.Overview{
		Symbol:      symbol,
		Name:        o.Name,
		Description: o.Description,
		Exchange:    o.Exchange,
		Currency:    o.Currency,
		Country:     o.Country,
		Sector:      o.Sector,
		Industry:    o.Industry,
		Source:      Name,
	}
	if mc, err := parseFloat(o.MarketCap); err == nil {
		out.MarketCap = mc
	}
	return out, nil
}

type newsItem struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	TimePublished string `json:"time_published"`
	Summary       string `json:"summary"`
	Source        string `json:"source"`
}

func (c *Client) GetNews(ctx context.Context, symbol string, limit int) (*models.NewsFeed, error) {
	if limit <= 0 {
		limit = 20
	}
	body, err := c.query(ctx, "news", map[string]string{
		"function": "NEWS_SENTIMENT",
		"tickers":  symbol,
		"limit":    strconv.Itoa(limit),
	})
	if err != nil {
		return nil, err
	}
	var items []newsItem
	if raw, ok := body["feed"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, providers.Malformed(Name, "news", err)
		}
	}
	if len(items) == 0 {
		return nil, providers.NoData(Name, "news")
	}
	if len(items) > limit {
		items = items[:limit]
	}
	feed := &models.NewsFeed{Symbol: symbol, Source: Name, Items: make([]models.NewsItem, 0, len(items))}
	for _, it := range items {
		var published int64
		if t, ok := util.ParseTime(it.TimePublished); ok {
			published = t.Unix()
		}
		feed.Items = append(feed.Items, models.NewsItem{
			ID:          it.URL,
			Headline:    it.Title,
			Summary:     it.Summary,
			URL:         it.URL,
			Publisher:   it.Source,
			PublishedAt: published,
		})
	}
	return feed, nil
}
