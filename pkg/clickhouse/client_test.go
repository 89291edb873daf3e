package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithHost("ch"),
		WithDatabase("granstocks"),
		WithCredentials("u", "p@ss"),
		WithMaxConnections(4, 8),
		WithTimeouts(2*time.Second, 0),
		WithMaxExecutionTime(time.Minute),
	} {
		opt(cfg)
	}
	require.NoError(t, cfg.validate())

	o := cfg.options()
	assert.Equal(t, []string{"ch:9000"}, o.Addr)
	assert.Equal(t, "granstocks", o.Auth.Database)
	assert.Equal(t, "u", o.Auth.Username)
	assert.Equal(t, "p@ss", o.Auth.Password)
	assert.Equal(t, clickhouse.Native, o.Protocol)
	assert.Equal(t, 2*time.Second, o.DialTimeout)
	assert.Equal(t, 30*time.Second, o.ReadTimeout)
	assert.Equal(t, 4, o.MaxOpenConns)
	assert.Equal(t, 4, o.MaxIdleConns)
	assert.Equal(t, 60, o.Settings["max_execution_time"])
}

func TestOptionsHTTP(t *testing.T) {
	cfg := defaultClientConfig()
	WithHost("ch")(cfg)
	WithPort(8123)(cfg)
	WithHTTP(true)(cfg)
	WithCredentials("", "")(cfg)

	o := cfg.options()
	assert.Equal(t, clickhouse.HTTP, o.Protocol)
	assert.Equal(t, []string{"ch:8123"}, o.Addr)
	assert.Equal(t, "default", o.Auth.Username)
	assert.Nil(t, o.Settings)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithPort(9000))
	assert.Error(t, err)
}
