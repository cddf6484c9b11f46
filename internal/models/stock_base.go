package models

import (
	"github.com/shopspring/decimal"
)

// Decimal precision of the stock base numeric columns
const (
	RatioDigits = 4
	RatioPlaces = 2
	SalesDigits = 10
	SalesPlaces = 2
)

// BaseFailureNone is the base_failure flag used when the source row leaves it empty
const BaseFailureNone = "n"

// StockBase is a consolidation period of a ticker with its breakout metrics.
// StockReferenceID points at the run the base was imported for and is independent
// of the many-to-many membership held by Stock.Bases.
type StockBase struct {
	ID                int64               `json:"id"`
	UserID            int64               `json:"user_id"`
	StockReferenceID  *int64              `json:"stock_reference_id,omitempty"`
	Ticker            string              `json:"ticker"`
	BaseCount         int                 `json:"base_count"`
	BaseFailure       *string             `json:"base_failure"`
	BoDate            Date                `json:"bo_date"`
	VolBo             *int64              `json:"vol_bo"`
	Vol20             *int64              `json:"vol_20"`
	BoVolRatio        decimal.NullDecimal `json:"bo_vol_ratio"`
	PricePercentRange decimal.NullDecimal `json:"price_percent_range"`
	BaseLength        *int                `json:"base_length"`
	Sales0Qtr         decimal.NullDecimal `json:"sales_0qtr"`
}
