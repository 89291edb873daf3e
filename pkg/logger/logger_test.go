package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path, Service: "granstocks"})
	require.NoError(t, err)

	child := l.With(String("component", "warm_queue"), Int("depth", 3))
	child.Debug("hidden")
	child.Info("queued",
		String("symbol", "AAPL"),
		Duration("elapsed", 1500*time.Millisecond),
		Strings("chain", []string{"finnhub", "yahoo"}),
		Bool("cached", false),
		Error(errors.New("boom")),
		Error(nil),
	)

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "queued", line["message"])
	assert.Equal(t, "granstocks", line["service"])
	assert.Equal(t, "warm_queue", line["component"])
	assert.EqualValues(t, 3, line["depth"])
	assert.Equal(t, "AAPL", line["symbol"])
	assert.EqualValues(t, 1500, line["elapsed"])
	assert.Equal(t, []interface{}{"finnhub", "yahoo"}, line["chain"])
	assert.Equal(t, false, line["cached"])
	assert.Equal(t, "boom", line["error"])
	assert.Contains(t, line["caller"], "logger_test.go")
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = New(&Config{Level: "info", Output: filepath.Join(t.TempDir(), "missing", "app.log")})
	assert.Error(t, err)
}

func TestNopDiscards(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.With(Any("k", struct{}{})).Error("nothing", Float64("x", 1.5), Time("at", time.Now()), Int64("n", 1))
	})
}
