package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

var (
	tickerRules  = rules{required: true, maxLength: 10}
	pctGainRules = rules{required: true, maxDigits: models.PctGainDigits, decimalPlaces: models.PctGainPlaces}
	ratioRules   = rules{allowNull: true, maxDigits: models.RatioDigits, decimalPlaces: models.RatioPlaces}
	salesRules   = rules{allowNull: true, maxDigits: models.SalesDigits, decimalPlaces: models.SalesPlaces}
)

// ListStocks handles GET /stock/stocks
func (h *Handler) ListStocks(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	stocks, err := h.store.ListStocks(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]stockResponse, 0, len(stocks))
	for _, s := range stocks {
		resp = append(resp, newStockResponse(s))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetStock handles GET /stock/stocks/{id}
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	stock, err := h.store.GetStock(r.Context(), user.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newStockDetailResponse(stock))
}

// CreateStock handles POST /stock/stocks. The caller always becomes the owner.
func (h *Handler) CreateStock(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	f, ok := readForm(w, r, false)
	if !ok {
		return
	}

	stock := &models.Stock{}
	parseStock(f, stock)
	bases, _ := parseBases(f)
	if !f.errs.empty() {
		respondJSON(w, http.StatusBadRequest, f.errs)
		return
	}

	stock.UserID = user.ID
	if err := h.store.CreateStock(r.Context(), stock, bases); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.log.Info().Int64("stock_id", stock.ID).Int64("user_id", user.ID).Str("ticker", stock.Ticker).Msg("stock created")
	h.publish(r.Context(), models.EventStockRunCreated, func(p EventPublisher) error {
		return p.PublishStockRunCreated(r.Context(), stock)
	})
	respondJSON(w, http.StatusCreated, newStockDetailResponse(stock))
}

// UpdateStock handles PUT and PATCH /stock/stocks/{id}. A submitted bases list
// replaces the stock's membership; a missing or null one leaves it untouched.
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	f, ok := readForm(w, r, r.Method == http.MethodPatch)
	if !ok {
		return
	}

	stock, err := h.store.ModifyStock(r.Context(), user.ID, id, func(s *models.Stock) ([]*models.StockBase, bool, error) {
		parseStock(f, s)
		bases, replace := parseBases(f)
		if !f.errs.empty() {
			return nil, false, errInvalid
		}
		return bases, replace, nil
	})
	if errors.Is(err, errInvalid) {
		respondJSON(w, http.StatusBadRequest, f.errs)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.publish(r.Context(), models.EventStockRunUpdated, func(p EventPublisher) error {
		return p.PublishStockRunUpdated(r.Context(), stock)
	})
	respondJSON(w, http.StatusOK, newStockDetailResponse(stock))
}

// DeleteStock handles DELETE /stock/stocks/{id}
func (h *Handler) DeleteStock(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	if err := h.store.DeleteStock(r.Context(), user.ID, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.publish(r.Context(), models.EventStockRunDeleted, func(p EventPublisher) error {
		return p.PublishStockRunDeleted(r.Context(), user.ID, id)
	})
	w.WriteHeader(http.StatusNoContent)
}

// publish sends an event when publishing is enabled. Failures are logged only.
func (h *Handler) publish(ctx context.Context, eventType string, send func(EventPublisher) error) {
	if h.events == nil {
		return
	}
	if err := send(h.events); err != nil {
		h.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// parseStock applies the submitted stock fields to s
func parseStock(f *form, s *models.Stock) {
	if v, ok := f.char("ticker", tickerRules); ok {
		s.Ticker = *v
	}
	if v, ok := f.date("start_date", rules{required: true}); ok {
		s.StartDate = *v
	}
	if v, ok := f.date("end_date", rules{required: true}); ok {
		s.EndDate = *v
	}
	if v, ok := f.char("sector", rules{required: true}); ok {
		s.Sector = *v
	}
	if v, ok := f.integer("num_bases", rules{required: true}); ok {
		s.NumBases = int(*v)
	}
	if v, ok := f.integer("length_run", rules{required: true}); ok {
		s.LengthRun = int(*v)
	}
	if v, ok := f.number("pct_gain", pctGainRules); ok {
		s.PctGain = *v
	}
	if v, ok := f.char("stock_run_notes", rules{allowBlank: true}); ok {
		s.StockRunNotes = *v
	}
}

// parseBases reads the nested bases list. replace is false when the field is
// missing or null. Item errors are reported per position.
func parseBases(f *form) (bases []*models.StockBase, replace bool) {
	raw, ok := f.data["bases"]
	if !ok || isNullJSON(raw) {
		return nil, false
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		f.errs["bases"] = validationErrors{
			nonFieldErrors: []string{`Expected a list of items but got type "` + jsonKind(raw) + `".`},
		}
		return nil, false
	}

	bases = make([]*models.StockBase, 0, len(items))
	itemErrs := make([]validationErrors, len(items))
	failed := false
	for i, item := range items {
		itemForm, err := newForm(item, false)
		if err != nil {
			itemErrs[i] = validationErrors{
				nonFieldErrors: []string{"Invalid data. Expected a dictionary, but got " + jsonKind(item) + "."},
			}
			failed = true
			continue
		}

		b := &models.StockBase{}
		parseStockBase(itemForm, b)
		itemErrs[i] = itemForm.errs
		if !itemForm.errs.empty() {
			failed = true
		}
		bases = append(bases, b)
	}

	if failed {
		f.errs["bases"] = itemErrs
		return nil, false
	}
	return bases, true
}

// parseStockBase applies the submitted stock base fields to b
func parseStockBase(f *form, b *models.StockBase) {
	if v, ok := f.char("ticker", tickerRules); ok {
		b.Ticker = *v
	}
	if v, ok := f.integer("base_count", rules{required: true}); ok {
		b.BaseCount = int(*v)
	}
	if v, ok := f.char("base_failure", rules{allowNull: true, maxLength: 1}); ok {
		b.BaseFailure = v
	}
	if v, ok := f.date("bo_date", rules{required: true}); ok {
		b.BoDate = *v
	}
	if v, ok := f.integer("vol_bo", rules{allowNull: true}); ok {
		b.VolBo = v
	}
	if v, ok := f.integer("vol_20", rules{allowNull: true}); ok {
		b.Vol20 = v
	}
	if v, ok := f.number("bo_vol_ratio", ratioRules); ok {
		b.BoVolRatio = nullDecimal(v)
	}
	if v, ok := f.number("price_percent_range", ratioRules); ok {
		b.PricePercentRange = nullDecimal(v)
	}
	if v, ok := f.integer("base_length", rules{allowNull: true}); ok {
		b.BaseLength = intPtr(v)
	}
	if v, ok := f.number("sales_0qtr", salesRules); ok {
		b.Sales0Qtr = nullDecimal(v)
	}
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*v)
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

// jsonKind names the type of a JSON value the way error messages expect
func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "str"
	}
	switch trimmed[0] {
	case '{':
		return "dict"
	case '[':
		return "list"
	case '"':
		return "str"
	case 't', 'f':
		return "bool"
	default:
		return "int"
	}
}
