package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"GranStocks/pkg/logger"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	} `yaml:"server"`
	Logging  logger.Config `yaml:"logging"`
	Database struct {
		Driver          string        `yaml:"driver" default:"sqlite"` // sqlite or postgres
		DSN             string        `yaml:"dsn" default:"file:granstocks.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
	} `yaml:"database"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"granstocks"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"granstocks"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Topics       struct {
			Events       string `yaml:"events" default:"granstocks.events"`
			WarmRequests string `yaml:"warm_requests" default:"granstocks.warm-requests"`
			DeadLetter   string `yaml:"dead_letter"` // empty disables forwarding
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"granstocks-warm"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"64"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Cache struct {
		Durable        string        `yaml:"durable" default:"sql"` // sql or redis
		MemoryTTL      time.Duration `yaml:"memory_ttl" default:"10s"`
		MemoryMaxSize  int           `yaml:"memory_max_size" default:"5000"`
		RedisRetention time.Duration `yaml:"redis_retention" default:"168h"`
		TTL            struct {
			Quote    time.Duration `yaml:"quote" default:"1m"`
			Candles  time.Duration `yaml:"candles" default:"6h"`
			Overview time.Duration `yaml:"overview" default:"168h"`
			News     time.Duration `yaml:"news" default:"30m"`
		} `yaml:"ttl"`
	} `yaml:"cache"`
	Providers struct {
		Finnhub      Provider            `yaml:"finnhub"`
		Yahoo        Provider            `yaml:"yahoo"`
		AlphaVantage Provider            `yaml:"alphavantage"`
		Alpaca       Provider            `yaml:"alpaca"`
		Binance      Provider            `yaml:"binance"`
		Chains       map[string][]string `yaml:"chains"`
		Crypto       []string            `yaml:"crypto"`
	} `yaml:"providers"`
	History struct {
		Backend       string  `yaml:"backend" default:"sql"` // sql or clickhouse
		BackfillYears int     `yaml:"backfill_years" default:"5"`
		CoverageRatio float64 `yaml:"coverage_ratio" default:"0.6"`
	} `yaml:"history"`
	Warm struct {
		QueueSize     int           `yaml:"queue_size" default:"512"`
		Delay         time.Duration `yaml:"delay" default:"2s"`
		FailedBackoff time.Duration `yaml:"failed_backoff" default:"1h"`
	} `yaml:"warm"`
	Screener struct {
		CursorEvery  int           `yaml:"cursor_every" default:"5"`
		StaleAfter   time.Duration `yaml:"stale_after" default:"2h"`
		UniversesDir string        `yaml:"universes_dir"`
		HistoryDays  int           `yaml:"history_days" default:"365"`
		Weights      Weights       `yaml:"weights"`
	} `yaml:"screener"`
	Scheduler struct {
		Enabled     bool     `yaml:"enabled" default:"true"`
		Timezone    string   `yaml:"timezone" default:"America/New_York"`
		DailyJob    string   `yaml:"daily_job" default:"30 18 * * 1-5"`
		Screener    string   `yaml:"screener" default:"0 20 * * 1-5"`
		Universes   []string `yaml:"universes"` // "type/name"
		HistoryDays int      `yaml:"history_days" default:"400"`
	} `yaml:"scheduler"`
	Jobs struct {
		DailySymbolsLimit int `yaml:"daily_symbols_limit"` // 0 = all READY symbols
	} `yaml:"jobs"`
}

// Provider configures one upstream adapter.
type Provider struct {
	Enabled   bool          `yaml:"enabled"`
	APIKey    string        `yaml:"api_key"`
	APISecret string        `yaml:"api_secret"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout" default:"8s"`
	MaxWait   time.Duration `yaml:"max_wait" default:"15s"`
	Limits    []Limit       `yaml:"limits"`
}

// Limit is one token bucket: Capacity tokens, fully refilled every Window.
type Limit struct {
	Capacity int           `yaml:"capacity"`
	Window   time.Duration `yaml:"window"`
}

// Weights scale each screener component; caps bound its contribution in points.
type Weights struct {
	Base        float64 `yaml:"base" default:"50"`
	Momentum    float64 `yaml:"momentum" default:"50"`
	MomentumCap float64 `yaml:"momentum_cap" default:"20"`
	Volatility  float64 `yaml:"volatility" default:"40"`
	VolFloor    float64 `yaml:"vol_floor" default:"0.2"`
	VolCap      float64 `yaml:"vol_cap" default:"15"`
	Drawdown    float64 `yaml:"drawdown" default:"40"`
	DrawdownCap float64 `yaml:"drawdown_cap" default:"15"`
	Trend       float64 `yaml:"trend" default:"100"`
	TrendCap    float64 `yaml:"trend_cap" default:"10"`
	Sharpe      float64 `yaml:"sharpe" default:"5"`
	SharpeCap   float64 `yaml:"sharpe_cap" default:"10"`
	Sortino     float64 `yaml:"sortino" default:"3"`
	SortinoCap  float64 `yaml:"sortino_cap" default:"10"`
}

// Default returns a config with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	c.applyProviderDefaults()
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyProviderDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Providers.Finnhub.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		c.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		c.Providers.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		c.Providers.Alpaca.APISecret = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return c, c.Validate()
}

// applyProviderDefaults fills rate limits and routing that cannot be expressed as tag defaults.
func (c *Config) applyProviderDefaults() {
	setLimits := func(p *Provider, limits ...Limit) {
		if len(p.Limits) == 0 {
			p.Limits = limits
		}
	}
	setLimits(&c.Providers.Finnhub, Limit{Capacity: 60, Window: time.Minute}, Limit{Capacity: 30, Window: time.Second})
	setLimits(&c.Providers.Yahoo, Limit{Capacity: 100, Window: time.Minute})
	setLimits(&c.Providers.AlphaVantage, Limit{Capacity: 5, Window: time.Minute}, Limit{Capacity: 25, Window: 24 * time.Hour})
	setLimits(&c.Providers.Alpaca, Limit{Capacity: 200, Window: time.Minute})
	setLimits(&c.Providers.Binance, Limit{Capacity: 1200, Window: time.Minute}, Limit{Capacity: 20, Window: time.Second})

	if c.Providers.Finnhub.BaseURL == "" {
		c.Providers.Finnhub.BaseURL = "https://finnhub.io/api/v1"
	}
	if c.Providers.Yahoo.BaseURL == "" {
		c.Providers.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Providers.AlphaVantage.BaseURL == "" {
		c.Providers.AlphaVantage.BaseURL = "https://www.alphavantage.co"
	}
	if c.Providers.Binance.BaseURL == "" {
		c.Providers.Binance.BaseURL = "https://api.binance.com"
	}

	if len(c.Providers.Chains) == 0 {
		c.Providers.Chains = map[string][]string{
			"US": {"finnhub", "alpaca", "yahoo", "alphavantage"},
			"SA": {"yahoo", "alphavantage"},
			"L":  {"yahoo", "alphavantage"},
		}
	}
	if len(c.Providers.Crypto) == 0 {
		c.Providers.Crypto = []string{"binance", "yahoo"}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("database.driver must be 'sqlite' or 'postgres', got '%s'", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Cache.Durable != "sql" && c.Cache.Durable != "redis" {
		return fmt.Errorf("cache.durable must be 'sql' or 'redis', got '%s'", c.Cache.Durable)
	}
	if c.Cache.MemoryTTL <= 0 || c.Cache.MemoryTTL > 10*time.Second {
		return fmt.Errorf("cache.memory_ttl must be within (0s, 10s], got %s", c.Cache.MemoryTTL)
	}
	if c.History.Backend != "sql" && c.History.Backend != "clickhouse" {
		return fmt.Errorf("history.backend must be 'sql' or 'clickhouse', got '%s'", c.History.Backend)
	}
	if c.History.Backend == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when history.backend is 'clickhouse'")
	}
	if c.History.CoverageRatio <= 0 || c.History.CoverageRatio > 1 {
		return fmt.Errorf("history.coverage_ratio must be within (0, 1]")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Jobs.DailySymbolsLimit < 0 {
		return fmt.Errorf("jobs.daily_symbols_limit cannot be negative")
	}
	if c.Screener.CursorEvery < 1 {
		return fmt.Errorf("screener.cursor_every must be >= 1")
	}
	for market, chain := range c.Providers.Chains {
		if len(chain) == 0 {
			return fmt.Errorf("providers.chains.%s cannot be empty", market)
		}
	}
	for _, p := range []Provider{c.Providers.Finnhub, c.Providers.Yahoo, c.Providers.AlphaVantage, c.Providers.Alpaca, c.Providers.Binance} {
		for _, l := range p.Limits {
			if l.Capacity < 1 || l.Window <= 0 {
				return fmt.Errorf("provider limits need capacity >= 1 and a positive window")
			}
		}
	}
	return nil
}
