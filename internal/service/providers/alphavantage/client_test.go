package alphavantage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/domain/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "demo", BaseURL: srv.URL})
}

func TestGetQuoteParsesStrings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`{"Global Quote":{"01. symbol":"IBM","05. price":"171.2500","07. latest trading day":"2024-01-05","09. change":"-1.0300","10. change percent":"-0.5979%"}}`))
	})

	q, err := c.GetQuote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, 171.25, q.Price)
	assert.Equal(t, -1.03, q.ChangeAbs)
	assert.Equal(t, -0.5979, q.ChangePct)
}

func TestThrottleNoteIsRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	})
	_, err := c.GetQuote(context.Background(), "IBM")
	assert.ErrorIs(t, err, models.ErrRateLimited)
}

func TestEmptyQuoteIsNoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Global Quote":{}}`))
	})
	_, err := c.GetQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, models.ErrNoData)
}

func TestGetCandles(t *testing.T) {
	d1 := time.Now().UTC().AddDate(0, 0, -2).Format(models.DateLayout)
	d2 := time.Now().UTC().AddDate(0, 0, -1).Format(models.DateLayout)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "compact", r.URL.Query().Get("outputsize"))
		_, _ = fmt.Fprintf(w, `{"Meta Data":{},"Time Series (Daily)":{
"%s":{"1. open":"10.0","2. high":"11.0","3. low":"9.5","4. close":"10.5","5. volume":"1000"},
"%s":{"1. open":"10.5","2. high":"12.0","3. low":"10.0","4. close":"11.5","5. volume":"1500"},
"2001-01-02":{"1. open":"1","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}}}`, d1, d2)
	})

	s, err := c.GetCandles(context.Background(), "IBM", models.Range1M)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len(), "rows outside the range are dropped")
	assert.Equal(t, []float64{10.5, 11.5}, s.C)
	for i := 1; i < len(s.T); i++ {
		assert.Less(t, s.T[i-1], s.T[i], "bars are sorted oldest first")
	}
}

func TestGetCandlesMalformedNumber(t *testing.T) {
	d := time.Now().UTC().Format(models.DateLayout)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `{"Time Series (Daily)":{"%s":{"1. open":"x","2. high":"1","3. low":"1","4. close":"1","5. volume":"1"}}}`, d)
	})
	_, err := c.GetCandles(context.Background(), "IBM", models.Range1M)
	var pe *models.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.NotErrorIs(t, err, models.ErrNoData)
}

func TestGetOverview(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Symbol":"IBM","Name":"International Business Machines","Exchange":"NYSE","Currency":"USD","Country":"USA","Sector":"TECHNOLOGY","Industry":"IT SERVICES","MarketCapitalization":"156000000000"}`))
	})
	o, err := c.GetOverview(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Equal(t, "TECHNOLOGY", o.Sector)
	assert.Equal(t, 1.56e11, o.MarketCap)
}
