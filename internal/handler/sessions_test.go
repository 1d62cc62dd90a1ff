package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

func (f *fakeChatSessions) ListAll(ctx context.Context, limit int) ([]model.Session, error) {
	out := make([]model.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func TestGetSession_ReturnsSession(t *testing.T) {
	sessions := newFakeChatSessions()
	sessions.sessions["s1"] = &model.Session{SessionID: "s1", Messages: []model.Message{{Role: "user", Content: "A"}}}

	r := chi.NewRouter()
	r.Get("/sessions/{id}", GetSession(sessions))

	req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp envelope
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Success {
		t.Fatalf("success = false")
	}
}

func TestListSessions_DefaultLimit(t *testing.T) {
	sessions := newFakeChatSessions()
	sessions.sessions["s1"] = &model.Session{SessionID: "s1"}

	handler := ListSessions(sessions)
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
