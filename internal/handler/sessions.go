package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

// SessionLister is the subset of internal/session.Store needed to serve
// session read endpoints.
type SessionLister interface {
	GetOrCreate(ctx context.Context, sessionID string) (*model.Session, error)
	ListAll(ctx context.Context, limit int) ([]model.Session, error)
}

// GetSession handles GET /sessions/{id}.
func GetSession(store SessionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			respondError(w, http.StatusBadRequest, fmt.Errorf("session id is required"))
			return
		}
		sess, err := store.GetOrCreate(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("get session: %w", err))
			return
		}
		respondOK(w, sess)
	}
}

// ListSessions handles GET /sessions?limit=N.
func ListSessions(store SessionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		sessions, err := store.ListAll(r.Context(), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, fmt.Errorf("list sessions: %w", err))
			return
		}
		respondOK(w, sessions)
	}
}
