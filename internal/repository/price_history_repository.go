package repository

import (
	"context"
	"fmt"
	"time"

	"GranStocks/internal/domain/models"
	domrepo "GranStocks/internal/domain/repository"
	"GranStocks/pkg/database"
)

// SQLPriceHistory stores daily bars in price_history.
type SQLPriceHistory struct {
	db *database.Client
}

var _ domrepo.PriceHistory = (*SQLPriceHistory)(nil)

// NewSQLPriceHistory creates the repository.
func NewSQLPriceHistory(db *database.Client) *SQLPriceHistory {
	return &SQLPriceHistory{db: db}
}

// UpsertBars writes bars in one transaction. Existing (asset_type, symbol,
// date) rows are overwritten in place.
func (r *SQLPriceHistory) UpsertBars(ctx context.Context, bars []models.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	const q = `
		INSERT INTO price_history (asset_type, symbol, date, open, high, low, close, volume, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (asset_type, symbol, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			updated_at = excluded.updated_at`

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert bars: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(q))
	if err != nil {
		return 0, fmt.Errorf("prepare upsert bars: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, b := range bars {
		updated := now
		if !b.UpdatedAt.IsZero() {
			updated = b.UpdatedAt.Unix()
		}
		if _, err := stmt.ExecContext(ctx, string(b.AssetType), b.Symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume, updated); err != nil {
			return 0, fmt.Errorf("upsert bar %s %s: %w", b.Symbol, b.Date, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert bars: %w", err)
	}
	return len(bars), nil
}

func (r *SQLPriceHistory) Range(ctx context.Context, assetType models.AssetType, symbol, fromDate string) ([]models.PriceBar, error) {
	const q = `
		SELECT date, open, high, low, close, volume, updated_at
		FROM price_history
		WHERE asset_type = ? AND symbol = ? AND date >= ?
		ORDER BY date ASC`
	rows, err := r.db.QueryContext(ctx, q, string(assetType), symbol, fromDate)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 256)
	for rows.Next() {
		b := models.PriceBar{AssetType: assetType, Symbol: symbol}
		var updated int64
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &updated); err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		b.UpdatedAt = time.Unix(updated, 0).UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *SQLPriceHistory) Coverage(ctx context.Context, assetType models.AssetType, symbol string) (string, string, int, error) {
	const q = `
		SELECT COALESCE(MIN(date), ''), COALESCE(MAX(date), ''), COUNT(*)
		FROM price_history
		WHERE asset_type = ? AND symbol = ?`
	var earliest, latest string
	var count int
	if err := r.db.QueryRowContext(ctx, q, string(assetType), symbol).Scan(&earliest, &latest, &count); err != nil {
		return "", "", 0, fmt.Errorf("price history coverage: %w", err)
	}
	return earliest, latest, count, nil
}
