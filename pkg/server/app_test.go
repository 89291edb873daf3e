package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GranStocks/internal/usecase"
	"GranStocks/pkg/config"
)

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func TestShutdownClosesInReverseOrder(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	var order []string
	closer := func(name string, err error) Closer {
		return Closer{Name: name, Closer: closeFunc(func() error {
			order = append(order, name)
			return err
		})}
	}

	app := New(cfg, Deps{
		Warm:     usecase.NewWarmQueue(4, nil, nil),
		Screener: usecase.NewScreenerJob(nil, nil, nil),
		Closers: []Closer{
			closer("database", nil),
			closer("cache", errors.New("already closed")),
			closer("events", nil),
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
	assert.Equal(t, []string{"events", "cache", "database"}, order)
}

func TestRunDailyWithoutJobReleasesClients(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	closed := false
	app := New(cfg, Deps{Closers: []Closer{{Name: "database", Closer: closeFunc(func() error {
		closed = true
		return nil
	})}}})

	_, err = app.RunDaily(context.Background(), "2024-03-01")
	require.Error(t, err)
	assert.True(t, closed)
}
