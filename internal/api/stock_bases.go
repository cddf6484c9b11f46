package api

import (
	"errors"
	"net/http"

	"github.com/trogers1052/stock-run-tracker/internal/models"
)

// ListStockBases handles GET /stock/stockbases
func (h *Handler) ListStockBases(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	bases, err := h.store.ListStockBases(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]stockBaseResponse, 0, len(bases))
	for _, b := range bases {
		resp = append(resp, newStockBaseResponse(b))
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetStockBase handles GET /stock/stockbases/{id}
func (h *Handler) GetStockBase(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	base, err := h.store.GetStockBase(r.Context(), user.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newStockBaseResponse(base))
}

// UpdateStockBase handles PUT and PATCH /stock/stockbases/{id}
func (h *Handler) UpdateStockBase(w http.ResponseWriter, r *http.Request) {
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

	base, err := h.store.ModifyStockBase(r.Context(), user.ID, id, func(b *models.StockBase) error {
		parseStockBase(f, b)
		if !f.errs.empty() {
			return errInvalid
		}
		return nil
	})
	if errors.Is(err, errInvalid) {
		respondJSON(w, http.StatusBadRequest, f.errs)
		return
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newStockBaseResponse(base))
}

// DeleteStockBase handles DELETE /stock/stockbases/{id}
func (h *Handler) DeleteStockBase(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		respondNotFound(w)
		return
	}

	if err := h.store.DeleteStockBase(r.Context(), user.ID, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
