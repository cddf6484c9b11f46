package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/trogers1052/stock-run-tracker/internal/database"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

type contextKey int

const (
	userKey contextKey = iota
	tokenKey
)

// userFromContext returns the authenticated caller
func userFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func tokenFromContext(ctx context.Context) string {
	key, _ := ctx.Value(tokenKey).(string)
	return key
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Token")
	respondDetail(w, http.StatusUnauthorized, detail)
}

// authenticate requires an "Authorization: Token <key>" header naming an active user
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Fields(r.Header.Get("Authorization"))
		if len(parts) == 0 || !strings.EqualFold(parts[0], "token") {
			unauthorized(w, "Authentication credentials were not provided.")
			return
		}
		if len(parts) == 1 {
			unauthorized(w, "Invalid token header. No credentials provided.")
			return
		}
		if len(parts) > 2 {
			unauthorized(w, "Invalid token header. Token string should not contain spaces.")
			return
		}

		key := parts[1]
		user, err := h.lookupToken(r.Context(), key)
		if errors.Is(err, database.ErrNotFound) {
			unauthorized(w, "Invalid token.")
			return
		}
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		if !user.IsActive {
			unauthorized(w, "User inactive or deleted.")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookupToken consults the token cache before the database. Cache failures fall through.
func (h *Handler) lookupToken(ctx context.Context, key string) (*models.User, error) {
	if h.tokens != nil {
		if user, err := h.tokens.Get(ctx, key); err == nil {
			return user, nil
		}
	}

	user, err := h.store.GetUserByToken(ctx, key)
	if err != nil {
		return nil, err
	}

	if h.tokens != nil {
		if err := h.tokens.Set(ctx, key, user); err != nil {
			h.log.Warn().Err(err).Msg("failed to cache token")
		}
	}
	return user, nil
}

// evictToken drops the caller's cached identity after a profile change
func (h *Handler) evictToken(ctx context.Context) {
	if h.tokens == nil {
		return
	}
	if err := h.tokens.Delete(ctx, tokenFromContext(ctx)); err != nil {
		h.log.Warn().Err(err).Msg("failed to evict cached token")
	}
}

// stripTrailingSlash makes "/stock/stocks/" and "/stock/stocks" the same route
func stripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimRight(r.URL.Path, "/")
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests writes one access log line per request
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
