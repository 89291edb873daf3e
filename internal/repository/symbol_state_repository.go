package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"GranStocks/internal/domain/models"
	domrepo "GranStocks/internal/domain/repository"
	"GranStocks/pkg/database"
)

// SQLSymbolStates stores symbol_cache_state rows.
type SQLSymbolStates struct {
	db *database.Client
}

var _ domrepo.SymbolStates = (*SQLSymbolStates)(nil)

// NewSQLSymbolStates creates the repository.
func NewSQLSymbolStates(db *database.Client) *SQLSymbolStates {
	return &SQLSymbolStates{db: db}
}

const symbolStateColumns = `asset_type, symbol, status, earliest_date, latest_date, bar_count, last_attempt_at, last_success_at, last_error`

func (r *SQLSymbolStates) Get(ctx context.Context, assetType models.AssetType, symbol string) (*models.SymbolCacheState, error) {
	q := `SELECT ` + symbolStateColumns + ` FROM symbol_cache_state WHERE asset_type = ? AND symbol = ?`
	st, err := scanSymbolState(r.db.QueryRowContext(ctx, q, string(assetType), symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get symbol state: %w", err)
	}
	return st, nil
}

func (r *SQLSymbolStates) Upsert(ctx context.Context, st *models.SymbolCacheState) error {
	q := `
		INSERT INTO symbol_cache_state (` + symbolStateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (asset_type, symbol) DO UPDATE SET
			status = excluded.status,
			earliest_date = excluded.earliest_date,
			latest_date = excluded.latest_date,
			bar_count = excluded.bar_count,
			last_attempt_at = excluded.last_attempt_at,
			last_success_at = excluded.last_success_at,
			last_error = excluded.last_error`
	_, err := r.db.ExecContext(ctx, q,
		string(st.AssetType), st.Symbol, string(st.Status),
		st.EarliestDate, st.LatestDate, st.BarCount,
		unixOrZero(st.LastAttemptAt), unixOrZero(st.LastSuccessAt), st.LastError,
	)
	if err != nil {
		return fmt.Errorf("upsert symbol state: %w", err)
	}
	return nil
}

func (r *SQLSymbolStates) ListByStatus(ctx context.Context, status models.CacheStatus) ([]models.SymbolCacheState, error) {
	q := `SELECT ` + symbolStateColumns + ` FROM symbol_cache_state WHERE status = ? ORDER BY asset_type, symbol`
	rows, err := r.db.QueryContext(ctx, q, string(status))
	if err != nil {
		return nil, fmt.Errorf("list symbol states: %w", err)
	}
	defer rows.Close()

	var out []models.SymbolCacheState
	for rows.Next() {
		st, err := scanSymbolState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol state: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSymbolState(row rowScanner) (*models.SymbolCacheState, error) {
	var (
		st                       models.SymbolCacheState
		assetType, status        string
		lastAttempt, lastSuccess int64
	)
	if err := row.Scan(&assetType, &st.Symbol, &status, &st.EarliestDate, &st.LatestDate, &st.BarCount,
		&lastAttempt, &lastSuccess, &st.LastError); err != nil {
		return nil, err
	}
	st.AssetType = models.AssetType(assetType)
	st.Status = models.CacheStatus(status)
	st.LastAttemptAt = timeOrZero(lastAttempt)
	st.LastSuccessAt = timeOrZero(lastSuccess)
	return &st, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
