package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/trogers1052/stock-run-tracker/internal/database"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

const maxBodyBytes = 1 << 20

// Store is the persistence the handlers need
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	GetOrCreateToken(ctx context.Context, userID int64) (*models.AuthToken, error)
	GetUserByToken(ctx context.Context, key string) (*models.User, error)

	ListStocks(ctx context.Context, userID int64) ([]*models.Stock, error)
	GetStock(ctx context.Context, userID, id int64) (*models.Stock, error)
	CreateStock(ctx context.Context, s *models.Stock, bases []*models.StockBase) error
	ModifyStock(ctx context.Context, userID, id int64, change database.StockChange) (*models.Stock, error)
	DeleteStock(ctx context.Context, userID, id int64) error

	ListStockBases(ctx context.Context, userID int64) ([]*models.StockBase, error)
	GetStockBase(ctx context.Context, userID, id int64) (*models.StockBase, error)
	ModifyStockBase(ctx context.Context, userID, id int64, change func(b *models.StockBase) error) (*models.StockBase, error)
	DeleteStockBase(ctx context.Context, userID, id int64) error
}

// TokenCache caches the user behind an auth token
type TokenCache interface {
	Get(ctx context.Context, key string) (*models.User, error)
	Set(ctx context.Context, key string, u *models.User) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher announces stock run changes
type EventPublisher interface {
	PublishStockRunCreated(ctx context.Context, stock *models.Stock) error
	PublishStockRunUpdated(ctx context.Context, stock *models.Stock) error
	PublishStockRunDeleted(ctx context.Context, userID, stockID int64) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store  Store
	tokens TokenCache
	events EventPublisher
	log    zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(store Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("component", "api").Logger(),
	}
}

// WithTokenCache enables token lookups through c
func (h *Handler) WithTokenCache(c TokenCache) *Handler {
	h.tokens = c
	return h
}

// WithEvents enables stock run events
func (h *Handler) WithEvents(p EventPublisher) *Handler {
	h.events = p
	return h
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func respondNotFound(w http.ResponseWriter) {
	respondDetail(w, http.StatusNotFound, "Not found.")
}

// respondError maps storage errors onto HTTP responses
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondNotFound(w)
	case errors.Is(err, database.ErrProtected):
		respondDetail(w, http.StatusConflict, "Cannot delete: the record is still referenced.")
	default:
		h.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		respondDetail(w, http.StatusInternalServerError, "internal server error")
	}
}

// readForm decodes the request body as a JSON object, writing a 400 on failure
func readForm(w http.ResponseWriter, r *http.Request, partial bool) (*form, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return nil, false
	}

	f, err := newForm(body, partial)
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			respondJSON(w, http.StatusBadRequest, validationErrors{
				nonFieldErrors: []string{"Invalid data. Expected a dictionary, but got " + jsonKind(body) + "."},
			})
			return nil, false
		}
		respondDetail(w, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return nil, false
	}
	return f, true
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}
