package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"GranStocks/internal/domain/models"
	domrepo "GranStocks/internal/domain/repository"
	"GranStocks/pkg/database"
)

// SQLSnapshots stores indicator, prediction and screener snapshots.
type SQLSnapshots struct {
	db *database.Client
}

var _ domrepo.Snapshots = (*SQLSnapshots)(nil)

// NewSQLSnapshots creates the repository.
func NewSQLSnapshots(db *database.Client) *SQLSnapshots {
	return &SQLSnapshots{db: db}
}

func (r *SQLSnapshots) HasIndicatorSnapshot(ctx context.Context, symbol, date string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indicator_snapshots WHERE symbol = ? AND date = ?`, symbol, date).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check indicator snapshot: %w", err)
	}
	return n > 0, nil
}

// SaveIndicatorSnapshot inserts once per (symbol, date); later writes are ignored.
func (r *SQLSnapshots) SaveIndicatorSnapshot(ctx context.Context, snap models.IndicatorSnapshot) error {
	bundle, err := json.Marshal(snap.Bundle)
	if err != nil {
		return fmt.Errorf("encode indicator bundle: %w", err)
	}
	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	const q = `
		INSERT INTO indicator_snapshots (symbol, date, bundle, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (symbol, date) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, snap.Symbol, snap.Date, string(bundle), created.Unix()); err != nil {
		return fmt.Errorf("save indicator snapshot: %w", err)
	}
	return nil
}

// GetIndicatorSnapshot returns models.ErrNotFound when absent.
func (r *SQLSnapshots) GetIndicatorSnapshot(ctx context.Context, symbol, date string) (*models.IndicatorSnapshot, error) {
	var bundle string
	var created int64
	err := r.db.QueryRowContext(ctx, `SELECT bundle, created_at FROM indicator_snapshots WHERE symbol = ? AND date = ?`, symbol, date).
		Scan(&bundle, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get indicator snapshot: %w", err)
	}
	snap := &models.IndicatorSnapshot{Symbol: symbol, Date: date, CreatedAt: time.Unix(created, 0).UTC()}
	if err := json.Unmarshal([]byte(bundle), &snap.Bundle); err != nil {
		return nil, fmt.Errorf("decode indicator bundle: %w", err)
	}
	return snap, nil
}

func (r *SQLSnapshots) SavePredictionSnapshots(ctx context.Context, snaps []models.PredictionSnapshot) error {
	const q = `
		INSERT INTO prediction_snapshots (symbol, date, horizon_days, predicted_return_pct, predicted_price, confidence, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, date, horizon_days) DO UPDATE SET
			predicted_return_pct = excluded.predicted_return_pct,
			predicted_price = excluded.predicted_price,
			confidence = excluded.confidence,
			payload = excluded.payload`
	for _, s := range snaps {
		payload, err := json.Marshal(s.Prediction)
		if err != nil {
			return fmt.Errorf("encode prediction: %w", err)
		}
		p := s.Prediction
		if _, err := r.db.ExecContext(ctx, q, s.Symbol, s.Date, p.HorizonDays, p.PredictedReturnPct, p.PredictedPrice, p.Confidence, string(payload)); err != nil {
			return fmt.Errorf("save prediction snapshot %s h=%d: %w", s.Symbol, p.HorizonDays, err)
		}
	}
	return nil
}

// ListPredictionSnapshots returns the stored horizons of symbol for date.
func (r *SQLSnapshots) ListPredictionSnapshots(ctx context.Context, symbol, date string) ([]models.PredictionSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM prediction_snapshots WHERE symbol = ? AND date = ? ORDER BY horizon_days`, symbol, date)
	if err != nil {
		return nil, fmt.Errorf("list prediction snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.PredictionSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan prediction snapshot: %w", err)
		}
		s := models.PredictionSnapshot{Symbol: symbol, Date: date}
		if err := json.Unmarshal([]byte(payload), &s.Prediction); err != nil {
			return nil, fmt.Errorf("decode prediction: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLSnapshots) UpsertScreenerSnapshot(ctx context.Context, snap models.ScreenerSnapshot) error {
	metrics, err := json.Marshal(snap.Metrics)
	if err != nil {
		return fmt.Errorf("encode screener metrics: %w", err)
	}
	flags := snap.RiskFlags
	if flags == nil {
		flags = []string{}
	}
	riskFlags, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("encode risk flags: %w", err)
	}
	const q = `
		INSERT INTO screener_snapshots (date, universe_type, universe_name, symbol, score, metrics, risk_flags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, universe_type, universe_name, symbol) DO UPDATE SET
			score = excluded.score,
			metrics = excluded.metrics,
			risk_flags = excluded.risk_flags`
	_, err = r.db.ExecContext(ctx, q, snap.Date, snap.UniverseType, snap.UniverseName, snap.Symbol, snap.Score, string(metrics), string(riskFlags))
	if err != nil {
		return fmt.Errorf("upsert screener snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

func (r *SQLSnapshots) ListScreenerSnapshots(ctx context.Context, universeType, universeName, date string, limit int) ([]models.ScreenerSnapshot, error) {
	if limit <= 0 {
		limit = 1000
	}
	const q = `
		SELECT symbol, score, metrics, risk_flags
		FROM screener_snapshots
		WHERE universe_type = ? AND universe_name = ? AND date = ?
		ORDER BY score DESC, symbol ASC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, universeType, universeName, date, limit)
	if err != nil {
		return nil, fmt.Errorf("list screener snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.ScreenerSnapshot
	for rows.Next() {
		s := models.ScreenerSnapshot{Date: date, UniverseType: universeType, UniverseName: universeName}
		var metrics, flags string
		if err := rows.Scan(&s.Symbol, &s.Score, &metrics, &flags); err != nil {
			return nil, fmt.Errorf("scan screener snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &s.Metrics); err != nil {
			return nil, fmt.Errorf("decode screener metrics: %w", err)
		}
		if err := json.Unmarshal([]byte(flags), &s.RiskFlags); err != nil {
			return nil, fmt.Errorf("decode risk flags: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLSnapshots) LatestScreenerDate(ctx context.Context, universeType, universeName string) (string, error) {
	var date string
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(date), '') FROM screener_snapshots WHERE universe_type = ? AND universe_name = ?`,
		universeType, universeName).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("latest screener date: %w", err)
	}
	if date == "" {
		return "", models.ErrNotFound
	}
	return date, nil
}
