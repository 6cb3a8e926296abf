package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/akolanti/docchat/internal/adapter"
	"github.com/akolanti/docchat/internal/api"
	"github.com/akolanti/docchat/internal/config"
)

// Health godoc
// @Summary      Liveness probe
// @Tags         Ops
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

// Search godoc
// @Summary      Search indexed documents
// @Description  Keyword relevance over indexed documents whose content contains the query.
// @Tags         Search
// @Produce      json
// @Param        q      query     string  true   "Free-text query"
// @Param        limit  query     int     false  "Maximum results (default 10, max 100)"
// @Success      200    {object}  api.SearchResponse
// @Failure      400    {object}  api.ErrorResponse
// @Router       /search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeBadRequest(w, r, "q is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, r, "limit must be a non-negative integer")
			return
		}
		if n > config.MaxSearchLimit {
			writeBadRequest(w, r, fmt.Sprintf("limit must not exceed %d", config.MaxSearchLimit))
			return
		}
		limit = n
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(query, h.search.Search(r.Context(), query, limit)))
}

// CreateSession godoc
// @Summary      Issue a session token
// @Description  Identity provider stand-in: returns a bearer token for the given user id.
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Param        request  body      api.SessionRequest  true  "User id"
// @Success      201      {object}  api.SessionResponse
// @Failure      400      {object}  api.ErrorResponse
// @Router       /sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req api.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, "Bad Request")
		return
	}
	s, err := h.sessions.Issue(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusCreated, adapter.ToSessionResponse(s))
}

// DeleteSession godoc
// @Summary      Revoke the caller's session token
// @Tags         Sessions
// @Security     BearerAuth
// @Success      204
// @Failure      400  {object}  api.ErrorResponse
// @Router       /sessions [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		writeBadRequest(w, r, "bearer token is required")
		return
	}
	if err := h.sessions.Revoke(r.Context(), strings.TrimSpace(token)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
