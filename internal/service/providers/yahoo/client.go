package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/service/providers"
	apphttp "GranStocks/pkg/http"
)

const (
	Name           = "yahoo"
	DefaultBaseURL = "https://query1.finance.yahoo.com"
)

// Config configures the Yahoo chart adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client reads the public chart endpoint. Quotes and overviews come from the
// chart metadata; news is not offered.
type Client struct {
	baseURL string
	http    *apphttp.Client
}

// New creates a Yahoo adapter.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    apphttp.NewClient(apphttp.WithTimeout(cfg.Timeout), apphttp.WithUserAgent("Mozilla/5.0")),
	}
}

func (c *Client) Name() string { return Name }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		ExchangeName       string  `json:"exchangeName"`
		FullExchangeName   string  `json:"fullExchangeName"`
		LongName           string  `json:"longName"`
		ShortName          string  `json:"shortName"`
		InstrumentType     string  `json:"instrumentType"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		PreviousClose      float64 `json:"previousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (c *Client) chart(ctx context.Context, op, symbol string, r models.Range) (*chartResult, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"range":    {string(r)},
			"interval": {"1d"},
		},
	}, &resp)
	if err != nil {
		return nil, providers.Classify(Name, op, err)
	}
	if e := resp.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, providers.NoData(Name, op)
		}
		return nil, providers.Malformed(Name, op, fmt.Errorf("%s: %s", e.Code, e.Description))
	}
	if len(resp.Chart.Result) == 0 {
		return nil, providers.NoData(Name, op)
	}
	return &resp.Chart.Result[0], nil
}

func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	res, err := c.chart(ctx, "quote", symbol, models.Range5D)
	if err != nil {
		return nil, err
	}
	m := res.Meta
	if m.RegularMarketPrice <= 0 {
		return nil, providers.NoData(Name, "quote")
	}
	prev := m.PreviousClose
	if prev <= 0 {
		prev = m.ChartPreviousClose
	}
	q := &models.Quote{
		Symbol: symbol,
		Price:  m.RegularMarketPrice,
		Ts:     m.RegularMarketTime,
		Source: Name,
	}
	if prev > 0 {
		q.ChangeAbs = m.RegularMarketPrice - prev
		q.ChangePct = q.ChangeAbs / prev * 100
	}
	return q, nil
}

func (c *Client) GetCandles(ctx context.Context, symbol string, r models.Range) (*models.CandleSeries, error) {
	res, err := c.chart(ctx, "candles", symbol, r)
	if err != nil {
		return nil, err
	}
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return nil, providers.NoData(Name, "candles")
	}
	q := res.Indicators.Quote[0]
	n := len(res.Timestamp)
	if len(q.Open) != n || len(q.High) != n || len(q.Low) != n || len(q.Close) != n || len(q.Volume) != n {
		return nil, providers.Malformed(Name, "candles", fmt.Errorf("ragged arrays for %s", symbol))
	}

	bars := make([]models.Bar, 0, n)
	for i, ts := range res.Timestamp {
		// Halted days come back as nulls.
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		var v float64
		if q.Volume[i] != nil {
			v = *q.Volume[i]
		}
		bars = append(bars, models.Bar{T: ts, O: *q.Open[i], H: *q.High[i], L: *q.Low[i], C: *q.Close[i], V: v})
	}
	s := models.NewCandleSeries(symbol, Name, bars)
	if s.Len() == 0 {
		return nil, providers.NoData(Name, "candles")
	}
	return s, nil
}

func (c *Client) GetOverview(ctx context.Context, symbol string) (*models.Overview, error) {
	res, err := c.chart(ctx, "overview", symbol, models.Range5D)
	if err != nil {
		return nil, err
	}
	m := res.Meta
	name := m.LongName
	if name == "" {
		name = m.ShortName
	}
	if name == "" {
		return nil, providers.NoData(Name, "overview")
	}
	exchange := m.FullExchangeName
	if exchange == "" {
		exchange = m.ExchangeName
	}
	return &models.Overview{
		Symbol:   symbol,
		Name:     name,
		Exchange: exchange,
		Currency: m.Currency,
		Source:   Name,
	}, nil
}

func (c *Client) GetNews(context.Context, string, int) (*models.NewsFeed, error) {
	return nil, providers.Unsupported(Name, "news")
}
