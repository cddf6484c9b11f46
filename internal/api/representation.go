package api

import (
	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type stockBaseResponse struct {
	ID                int64   `json:"id"`
	Ticker            string  `json:"ticker"`
	BaseCount         int     `json:"base_count"`
	BaseFailure       *string `json:"base_failure"`
	BoDate            string  `json:"bo_date"`
	VolBo             *int64  `json:"vol_bo"`
	Vol20             *int64  `json:"vol_20"`
	BoVolRatio        *string `json:"bo_vol_ratio"`
	PricePercentRange *string `json:"price_percent_range"`
	BaseLength        *int    `json:"base_length"`
	Sales0Qtr         *string `json:"sales_0qtr"`
}

// stockResponse is the list representation of a stock
type stockResponse struct {
	ID        int64               `json:"id"`
	Ticker    string              `json:"ticker"`
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Sector    string              `json:"sector"`
	NumBases  int                 `json:"num_bases"`
	LengthRun int                 `json:"length_run"`
	PctGain   string              `json:"pct_gain"`
	Bases     []stockBaseResponse `json:"bases"`
}

// stockDetailResponse adds the notes to the list representation
type stockDetailResponse struct {
	stockResponse
	StockRunNotes string `json:"stock_run_notes"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name}
}

func fixed(d decimal.NullDecimal, places int32) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(places)
	return &s
}

func newStockBaseResponse(b *models.StockBase) stockBaseResponse {
	return stockBaseResponse{
		ID:                b.ID,
		Ticker:            b.Ticker,
		BaseCount:         b.BaseCount,
		BaseFailure:       b.BaseFailure,
		BoDate:            b.BoDate.String(),
		VolBo:             b.VolBo,
		Vol20:             b.Vol20,
		BoVolRatio:        fixed(b.BoVolRatio, models.RatioPlaces),
		PricePercentRange: fixed(b.PricePercentRange, models.RatioPlaces),
		BaseLength:        b.BaseLength,
		Sales0Qtr:         fixed(b.Sales0Qtr, models.SalesPlaces),
	}
}

func newStockResponse(s *models.Stock) stockResponse {
	bases := make([]stockBaseResponse, 0, len(s.Bases))
	for _, b := range s.Bases {
		bases = append(bases, newStockBaseResponse(b))
	}
	return stockResponse{
		ID:        s.ID,
		Ticker:    s.Ticker,
		StartDate: s.StartDate.String(),
		EndDate:   s.EndDate.String(),
		Sector:    s.Sector,
		NumBases:  s.NumBases,
		LengthRun: s.LengthRun,
		PctGain:   s.PctGain.StringFixed(models.PctGainPlaces),
		Bases:     bases,
	}
}

func newStockDetailResponse(s *models.Stock) stockDetailResponse {
	return stockDetailResponse{
		stockResponse: newStockResponse(s),
		StockRunNotes: s.StockRunNotes,
	}
}
