package repository

// Schema is the relational layout shared by sqlite and postgres. Times are
// unix seconds; booleans are 0/1 integers.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS cached_entries (
		cache_key   TEXT PRIMARY KEY,
		payload     TEXT NOT NULL,
		ttl_seconds BIGINT NOT NULL,
		written_at  BIGINT NOT NULL,
		is_stale    INTEGER NOT NULL DEFAULT 0,
		source      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		asset_type TEXT NOT NULL,
		symbol     TEXT NOT NULL,
		date       TEXT NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		volume     DOUBLE PRECISION NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (asset_type, symbol, date)
	)`,
	`CREATE TABLE IF NOT EXISTS symbol_cache_state (
		asset_type      TEXT NOT NULL,
		symbol          TEXT NOT NULL,
		status          TEXT NOT NULL,
		earliest_date   TEXT NOT NULL DEFAULT '',
		latest_date     TEXT NOT NULL DEFAULT '',
		bar_count       INTEGER NOT NULL DEFAULT 0,
		last_attempt_at BIGINT NOT NULL DEFAULT 0,
		last_success_at BIGINT NOT NULL DEFAULT 0,
		last_error      TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (asset_type, symbol)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_symbol_cache_state_status ON symbol_cache_state (status)`,
	`CREATE TABLE IF NOT EXISTS job_states (
		universe_type TEXT NOT NULL,
		universe_name TEXT NOT NULL,
		status        TEXT NOT NULL,
		run_id        TEXT NOT NULL,
		cursor_index  INTEGER NOT NULL DEFAULT 0,
		total         INTEGER NOT NULL DEFAULT 0,
		last_error    TEXT NOT NULL DEFAULT '',
		started_at    BIGINT NOT NULL,
		finished_at   BIGINT,
		updated_at    BIGINT NOT NULL,
		PRIMARY KEY (universe_type, universe_name)
	)`,
	`CREATE TABLE IF NOT EXISTS indicator_snapshots (
		symbol     TEXT NOT NULL,
		date       TEXT NOT NULL,
		bundle     TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (symbol, date)
	)`,
	`CREATE TABLE IF NOT EXISTS prediction_snapshots (
		symbol               TEXT NOT NULL,
		date                 TEXT NOT NULL,
		horizon_days         INTEGER NOT NULL,
		predicted_return_pct DOUBLE PRECISION NOT NULL,
		predicted_price      DOUBLE PRECISION NOT NULL,
		confidence           DOUBLE PRECISION NOT NULL,
		payload              TEXT NOT NULL,
		PRIMARY KEY (symbol, date, horizon_days)
	)`,
	`CREATE TABLE IF NOT EXISTS screener_snapshots (
		date          TEXT NOT NULL,
		universe_type TEXT NOT NULL,
		universe_name TEXT NOT NULL,
		symbol        TEXT NOT NULL,
		score         DOUBLE PRECISION NOT NULL,
		metrics       TEXT NOT NULL,
		risk_flags    TEXT NOT NULL,
		PRIMARY KEY (date, universe_type, universe_name, symbol)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_screener_snapshots_rank ON screener_snapshots (universe_type, universe_name, date, score)`,
}

// ClickHouseSchema holds the columnar price history table. ReplacingMergeTree
// keeps the row with the highest updated_at per key; reads use FINAL.
var ClickHouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS price_history (
		asset_type LowCardinality(String),
		symbol     LowCardinality(String),
		date       Date,
		open       Float64,
		high       Float64,
		low        Float64,
		close      Float64,
		volume     Float64,
		updated_at DateTime
	) ENGINE = ReplacingMergeTree(updated_at)
	PARTITION BY toYear(date)
	ORDER BY (asset_type, symbol, date)`,
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
