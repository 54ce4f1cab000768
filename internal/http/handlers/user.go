package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shipway/server/internal/account"
	"github.com/shipway/server/internal/apperr"
	"github.com/shipway/server/internal/middleware"
	"github.com/shipway/server/internal/model"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// UserHandler handles profile and user administration endpoints
type UserHandler struct {
	accounts *account.Manager
}

// NewUserHandler creates a new user handler
func NewUserHandler(accounts *account.Manager) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// updateMeRequest is the request body for PUT /users/me
type updateMeRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type paginationResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type listUsersResponse struct {
	Data       []userResponse     `json:"data"`
	Pagination paginationResponse `json:"pagination"`
}

// HandleMe handles GET /users/me (protected). Returns the authenticated user.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", apperr.CodeUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(*user))
}

// HandleUpdateMe handles PUT /users/me. Only name and email can be changed here.
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", apperr.CodeUnauthorized)
		return
	}

	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var patch model.UserPatch
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			respondWithAppError(w, r, err)
			return
		}
		name := strings.TrimSpace(*req.Name)
		patch.Name = &name
	}
	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			respondWithAppError(w, r, err)
			return
		}
		email := strings.TrimSpace(*req.Email)
		patch.Email = &email
	}
	if patch.Empty() {
		respondWithAppError(w, r, apperr.Validation("nothing to update"))
		return
	}

	updated, err := h.accounts.Update(r.Context(), user.ID, patch)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(updated))
}

// HandleList handles GET /users?page&limit&role (admin)
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1)
	if err != nil {
		respondWithAppError(w, r, apperr.Validation("page must be a positive integer"))
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), defaultPageLimit)
	if err != nil || limit > maxPageLimit {
		respondWithAppError(w, r, apperr.Validation("limit must be between 1 and 100"))
		return
	}
	var role *model.Role
	if raw := strings.TrimSpace(q.Get("role")); raw != "" {
		rl := model.Role(raw)
		if !rl.Valid() {
			respondWithAppError(w, r, apperr.Validation("role must be admin, user or driver"))
			return
		}
		role = &rl
	}

	result, err := h.accounts.List(r.Context(), role, page, limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	data := make([]userResponse, 0, len(result.Users))
	for _, u := range result.Users {
		data = append(data, toUserResponse(u))
	}
	respondJSON(w, http.StatusOK, listUsersResponse{
		Data: data,
		Pagination: paginationResponse{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
			Pages: result.Pages(),
		},
	})
}

// HandleGet handles GET /users/{id} (admin)
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	user, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleDelete handles DELETE /users/{id} (admin). Admins cannot delete their own account.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", apperr.CodeUnauthorized)
		return
	}
	id, err := parseUserID(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if id == actor.ID {
		respondWithAppError(w, r, apperr.Validation("you cannot delete your own account"))
		return
	}

	deleted, err := h.accounts.Delete(r.Context(), id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if !deleted {
		respondWithAppError(w, r, account.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "user_deleted"})
}

func parseUserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid user id")
	}
	return id, nil
}

func parsePositiveInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation("must be a positive integer")
	}
	return n, nil
}
