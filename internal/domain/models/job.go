package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// JobStatus is the screener run state.
type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// JobState is the resumable progress of a screener run, unique per universe.
type JobState struct {
	UniverseType string     `json:"universeType"`
	UniverseName string     `json:"universeName"`
	Status       JobStatus  `json:"status"`
	RunID        string     `json:"runId"`
	CursorIndex  int        `json:"cursorIndex"`
	Total        int        `json:"total"`
	LastError    string     `json:"lastError,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Universe is a named static list of symbols scored together.
type Universe struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

// Key identifies the universe in logs and metrics.
func (u Universe) Key() string { return u.Type + "/" + u.Name }

// AssetType of the universe members.
func (u Universe) AssetType() AssetType {
	if u.Type == string(AssetCrypto) {
		return AssetCrypto
	}
	return AssetStock
}

// ScreenerMetrics are the score inputs; null when not computable.
type ScreenerMetrics struct {
	Return6M    null.Float `json:"return6m"`
	Volatility  null.Float `json:"volatility"`
	MaxDrawdown null.Float `json:"maxDrawdown"`
	TrendVs20   null.Float `json:"trendVs20"`
	Sharpe      null.Float `json:"sharpe"`
	Sortino     null.Float `json:"sortino"`
	LastClose   null.Float `json:"lastClose"`
	DataQuality float64    `json:"dataQuality"`
	Bars        int        `json:"bars"`
}

// ScreenerSnapshot is one scored symbol, unique per (Date, UniverseType, UniverseName, Symbol).
type ScreenerSnapshot struct {
	Date         string          `json:"date"`
	UniverseType string          `json:"universeType"`
	UniverseName string          `json:"universeName"`
	Symbol       string          `json:"symbol"`
	Score        float64         `json:"score"`
	Metrics      ScreenerMetrics `json:"metrics"`
	RiskFlags    []string        `json:"riskFlags"`
}
