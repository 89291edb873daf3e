package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
)

const chartBody = `{"chart":{"result":[{"meta":{"symbol":"PETR4.SA","currency":"BRL","exchangeName":"SAO","longName":"Petrobras","regularMarketPrice":38.5,"regularMarketTime":1700000000,"chartPreviousClose":37.0,"previousClose":38.0},
"timestamp":[1699833600,1699920000,1700006400],
"indicators":{"quote":[{"open":[37.1,null,38.0],"high":[37.9,null,38.8],"low":[36.8,null,37.7],"close":[37.5,null,38.5],"volume":[1000,null,1200]}]}}],"error":null}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL})
}

func TestGetCandlesSkipsNullBars(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/PETR4.SA", r.URL.Path)
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(chartBody))
	})

	s, err := c.GetCandles(context.Background(), "PETR4.SA", models.Range1Y)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []float64{37.5, 38.5}, s.C)
	assert.Equal(t, Name, s.Source)
}

func TestGetQuoteFromMeta(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartBody))
	})

	q, err := c.GetQuote(context.Background(), "PETR4.SA")
	require.NoError(t, err)
	assert.Equal(t, 38.5, q.Price)
	assert.InDelta(t, 0.5, q.ChangeAbs, 1e-9)
	assert.InDelta(t, 1.3157894, q.ChangePct, 1e-6)
}

func TestNotFoundIsNoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})
	_, err := c.GetCandles(context.Background(), "NOPE", models.Range1Y)
	assert.ErrorIs(t, err, models.ErrNoData)
}

func TestNewsUnsupported(t *testing.T) {
	c := New(Config{})
	_, err := c.GetNews(context.Background(), "AAPL", 5)
	assert.ErrorIs(t, err, models.ErrUnsupported)
}
