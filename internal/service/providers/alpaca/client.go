package alpaca

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"GranStocks/internal/domain/models"
	"GranStocks/internal/service/providers"
)

const Name = "alpaca"

// Config configures the Alpaca market data adapter.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Feed      string
}

// dataClient is the part of *marketdata.Client the adapter uses.
type dataClient interface {
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

// Client wraps the Alpaca SDK. The SDK does not take a context, so calls are
// abandoned when ctx ends.
type Client struct {
	md   dataClient
	feed marketdata.Feed
	now  func() time.Time
}

// New creates an Alpaca adapter. US equities only.
func New(cfg Config) *Client {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	return newWithClient(marketdata.NewClient(opts), cfg.Feed)
}

func newWithClient(md dataClient, feed string) *Client {
	if feed == "" {
		feed = "iex"
	}
	return &Client{md: md, feed: marketdata.Feed(feed), now: time.Now}
}

func (c *Client) Name() string { return Name }

func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	snap, err := providers.RunBlocking(ctx, func() (*marketdata.Snapshot, error) {
		return c.md.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: c.feed})
	})
	if err != nil {
		return nil, classify("quote", err)
	}
	if snap == nil || snap.LatestTrade == nil || snap.LatestTrade.Price <= 0 {
		return nil, providers.NoData(Name, "quote")
	}

	q := &models.Quote{
		Symbol: symbol,
		Price:  snap.LatestTrade.Price,
		Ts:     snap.LatestTrade.Timestamp.Unix(),
		Source: Name,
	}
	if prev := snap.PrevDailyBar; prev != nil && prev.Close > 0 {
		q.ChangeAbs = q.Price - prev.Close
		q.ChangePct = q.ChangeAbs / prev.Close * 100
	}
	return q, nil
}

func (c *Client) GetCandles(ctx context.Context, symbol string, r models.Range) (*models.CandleSeries, error) {
	now := c.now().UTC()
	raw, err := providers.RunBlocking(ctx, func() ([]marketdata.Bar, error) {
		return c.md.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     r.From(now),
			End:       now,
			Feed:      c.feed,
		})
	})
	if err != nil {
		return nil, classify("candles", err)
	}

	bars := make([]models.Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, models.Bar{
			T: b.Timestamp.Unix(),
			O: b.Open,
			H: b.High,
			L: b.Low,
			C: b.Close,
			V: float64(b.Volume),
		})
	}
	s := models.NewCandleSeries(symbol, Name, bars)
	if s.Len() == 0 {
		return nil, providers.NoData(Name, "candles")
	}
	return s, nil
}

func (c *Client) GetOverview(context.Context, string) (*models.Overview, error) {
	return nil, providers.Unsupported(Name, "overview")
}

func (c *Client) GetNews(ctx context.Context, symbol string, limit int) (*models.NewsFeed, error) {
	if limit <= 0 {
		limit = 20
	}
	now := c.now().UTC()
	raw, err := providers.RunBlocking(ctx, func() ([]marketdata.News, error) {
		return c.md.GetNews(marketdata.GetNewsRequest{
			Symbols:    []string{symbol},
			Start:      now.AddDate(0, 0, -7),
			End:        now,
			TotalLimit: limit,
			Sort:       marketdata.SortDesc,
		})
	})
	if err != nil {
		return nil, classify("news", err)
	}
	if len(raw) == 0 {
		return nil, providers.NoData(Name, "news")
	}

	feed := &models.NewsFeed{Symbol: symbol, Source: Name, Items: make([]models.NewsItem, 0, len(raw))}
	for _, n := range raw {
		feed.Items = append(feed.Items, models.NewsItem{
			ID:          strconv.Itoa(n.ID),
			Headline:    n.Headline,
			Summary:     n.Summary,
			URL:         n.URL,
			Publisher:   n.Author,
			PublishedAt: n.CreatedAt.Unix(),
		})
	}
	return feed, nil
}

// classify maps SDK errors; the SDK reports HTTP failures only through the message.
func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return models.NewProviderError(Name, op, 429, models.ErrRateLimited)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "invalid symbol"):
		return models.NewProviderError(Name, op, 404, models.ErrNoData)
	}
	return providers.Classify(Name, op, fmt.Errorf("alpaca sdk: %w", err))
}
