package api

import (
	"errors"
	"net/http"

	"github.com/trogers1052/stock-run-tracker/internal/database"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

const (
	msgDuplicateEmail = "user with this email already exists."
	msgBadCredentials = "Unable to authenticate with credentials"
)

var (
	emailRules    = rules{required: true, maxLength: 255}
	passwordRules = rules{required: true, minLength: 8}
	nameRules     = rules{required: true, maxLength: 255}
)

// CreateUser handles POST /user/create
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	f, ok := readForm(w, r, false)
	if !ok {
		return
	}

	email, _ := f.email("email", emailRules)
	password, _ := f.char("password", passwordRules)
	name, _ := f.char("name", nameRules)
	if !f.errs.empty() {
		respondJSON(w, http.StatusBadRequest, f.errs)
		return
	}

	user, err := models.NewUser(*email, *password, *name)
	if err != nil {
		f.errs.add("email", err.Error())
		respondJSON(w, http.StatusBadRequest, f.errs)
		return
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			f.errs.add("email", msgDuplicateEmail)
			respondJSON(w, http.StatusBadRequest, f.errs)
			return
		}
		h.respondError(w, r, err)
		return
	}

	h.log.Info().Int64("user_id", user.ID).Msg("user created")
	respondJSON(w, http.StatusCreated, newUserResponse(user))
}

// CreateToken handles POST /user/token
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	f, ok := readForm(w, r, false)
	if !ok {
		return
	}

	email, _ := f.email("email", rules{required: true})
	password, _ := f.char("password", rules{required: true, noTrim: true})
	if !f.errs.empty() {
		respondJSON(w, http.StatusBadRequest, f.errs)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), *email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		h.respondError(w, r, err)
		return
	}
	if user == nil || !user.IsActive || !user.CheckPassword(*password) {
		f.errs.add(nonFieldErrors, msgBadCredentials)
		respondJSON(w, http.StatusBadRequest, f.errs)
		return
	}

	token, err := h.store.GetOrCreateToken(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{Token: token.Key})
}

// GetMe handles GET /user/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newUserResponse(userFromContext(r.Context())))
}

// UpdateMe handles PUT and PATCH /user/me. A submitted password is re-hashed.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	caller := userFromContext(r.Context())

	// the cached identity carries no password hash, so reload before saving
	user, err := h.store.GetUserByID(r.Context(), caller.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	f, ok := readForm(w, r, r.Method == http.MethodPatch)
	if !ok {
		return
	}

	email, _ := f.email("email", emailRules)
	password, _ := f.char("password", passwordRules)
	name, _ := f.char("name", nameRules)
	if !f.errs.empty() {
		respondJSON(w, http.StatusBadRequest, f.errs)
		return
	}

	if email != nil {
		user.Email = *email
	}
	if name != nil {
		user.Name = *name
	}
	if password != nil {
		if err := user.SetPassword(*password); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			f.errs.add("email", msgDuplicateEmail)
			respondJSON(w, http.StatusBadRequest, f.errs)
			return
		}
		h.respondError(w, r, err)
		return
	}
	h.evictToken(r.Context())

	respondJSON(w, http.StatusOK, newUserResponse(user))
}
