package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock event type constants
const (
	EventStockRunCreated = "STOCK_RUN_CREATED"
	EventStockRunUpdated = "STOCK_RUN_UPDATED"
	EventStockRunDeleted = "STOCK_RUN_DELETED"
)

// Decimal precision of the numeric columns
const (
	PctGainDigits = 7
	PctGainPlaces = 1
)

// StockRunEvent represents a Kafka event for stock run changes
type StockRunEvent struct {
	EventType string    `json:"event_type"`
	StockID   int64     `json:"stock_id"`
	UserID    int64     `json:"user_id"`
	Ticker    string    `json:"ticker,omitempty"`
	Stock     *Stock    `json:"stock,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stock is one run of a ticker between two dates, owned by a single user
type Stock struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Ticker        string          `json:"ticker"`
	StartDate     Date            `json:"start_date"`
	EndDate       Date            `json:"end_date"`
	NumBases      int             `json:"num_bases"`
	Sector        string          `json:"sector"`
	LengthRun     int             `json:"length_run"`
	PctGain       decimal.Decimal `json:"pct_gain"`
	StockRunNotes string          `json:"stock_run_notes"`
	Bases         []*StockBase    `json:"bases"`
}
