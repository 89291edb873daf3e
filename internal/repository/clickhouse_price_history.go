package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"GranStocks/internal/domain/models"
	domrepo "GranStocks/internal/domain/repository"
	pkgch "GranStocks/pkg/clickhouse"
	applogger "GranStocks/pkg/logger"
)

// CHPriceHistory implements PriceHistory on a ClickHouse ReplacingMergeTree.
// Upserts are plain inserts; FINAL collapses duplicates at read time.
type CHPriceHistory struct {
	ch   *pkgch.Client
	conn driver.Conn
	l    *applogger.Logger
}

var _ domrepo.PriceHistory = (*CHPriceHistory)(nil)

func NewCHPriceHistory(ch *pkgch.Client) *CHPriceHistory {
	return &CHPriceHistory{ch: ch, conn: ch.Conn()}
}

// SetLogger injects a structured logger.
func (s *CHPriceHistory) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceHistory) UpsertBars(ctx context.Context, bars []models.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	start := time.Now()
	const q = `INSERT INTO price_history (asset_type, symbol, date, open, high, low, close, volume, updated_at)`
	now := time.Now().UTC()
	rows := make([][]any, 0, len(bars))
	for _, b := range bars {
		d, err := time.Parse(models.DateLayout, b.Date)
		if err != nil {
			return 0, fmt.Errorf("bar date %q: %w", b.Date, err)
		}
		updated := now
		if !b.UpdatedAt.IsZero() {
			updated = b.UpdatedAt.UTC()
		}
		rows = append(rows, []any{string(b.AssetType), b.Symbol, d, b.Open, b.High, b.Low, b.Close, b.Volume, updated})
	}
	if err := s.ch.InsertBatch(ctx, q, rows); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse upsert_bars error",
				applogger.String("symbol", bars[0].Symbol),
				applogger.Int("rows", len(rows)),
				applogger.Error(err),
			)
		}
		return 0, fmt.Errorf("insert bars: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse upsert_bars ok",
			applogger.String("symbol", bars[0].Symbol),
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return len(rows), nil
}

func (s *CHPriceHistory) Range(ctx context.Context, assetType models.AssetType, symbol, fromDate string) ([]models.PriceBar, error) {
	start := time.Now()
	from, err := time.Parse(models.DateLayout, fromDate)
	if err != nil {
		return nil, fmt.Errorf("from date %q: %w", fromDate, err)
	}
	const q = `
		SELECT date, open, high, low, close, volume, updated_at
		FROM price_history FINAL
		WHERE asset_type = ? AND symbol = ? AND date >= ?
		ORDER BY date ASC`
	rows, err := s.conn.Query(ctx, q, string(assetType), symbol, from)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse range query error",
				applogger.String("symbol", symbol),
				applogger.String("from", fromDate),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 256)
	for rows.Next() {
		b := models.PriceBar{AssetType: assetType, Symbol: symbol}
		var d time.Time
		if err := rows.Scan(&d, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.UpdatedAt); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse range scan error", applogger.String("symbol", symbol), applogger.Error(err))
			}
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = d.UTC().Format(models.DateLayout)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse range ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHPriceHistory) Coverage(ctx context.Context, assetType models.AssetType, symbol string) (string, string, int, error) {
	const q = `
		SELECT min(date), max(date), count()
		FROM price_history FINAL
		WHERE asset_type = ? AND symbol = ?`
	var (
		earliest, latest time.Time
		count            uint64
	)
	if err := s.conn.QueryRow(ctx, q, string(assetType), symbol).Scan(&earliest, &latest, &count); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse coverage error", applogger.String("symbol", symbol), applogger.Error(err))
		}
		return "", "", 0, fmt.Errorf("price history coverage: %w", err)
	}
	if count == 0 {
		return "", "", 0, nil
	}
	return earliest.UTC().Format(models.DateLayout), latest.UTC().Format(models.DateLayout), int(count), nil
}
