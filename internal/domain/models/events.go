package models

import (
	"encoding/json"
	"time"
)

const (
	EventScreenerCompleted = "screener.completed"
	EventHistoryBackfilled = "history.backfilled"
)

// Event is published on the events topic.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// ScreenerCompletedPayload is the payload of EventScreenerCompleted.
type ScreenerCompletedPayload struct {
	UniverseType string `json:"universeType"`
	UniverseName string `json:"universeName"`
	Date         string `json:"date"`
	RunID        string `json:"runId"`
	Scored       int    `json:"scored"`
	Failed       int    `json:"failed"`
}

// HistoryBackfilledPayload is the payload of EventHistoryBackfilled.
type HistoryBackfilledPayload struct {
	Symbol    string    `json:"symbol"`
	AssetType AssetType `json:"assetType"`
	Bars      int       `json:"bars"`
	Earliest  string    `json:"earliest"`
	Latest    string    `json:"latest"`
}
