package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/connexus-ai/legalrag-backend/internal/llm"
	"github.com/connexus-ai/legalrag-backend/internal/model"
)

type fakeChatSessions struct {
	sessions map[string]*model.Session
}

func newFakeChatSessions() *fakeChatSessions {
	return &fakeChatSessions{sessions: make(map[string]*model.Session)}
}

func (f *fakeChatSessions) GetOrCreate(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if s, ok := f.sessions[sessionID]; ok {
		return s, nil
	}
	s := &model.Session{SessionID: sessionID}
	f.sessions[sessionID] = s
	return s, nil
}

func (f *fakeChatSessions) AddMessage(ctx context.Context, sessionID string, msg model.Message) (*model.Session, error) {
	s, err := f.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.Messages = append(s.Messages, msg)
	return s, nil
}

type fakeChatRetriever struct{}

func (fakeChatRetriever) Retrieve(ctx context.Context, question string, topK int, useEnhancer, useReranking bool) ([]model.RetrievalResult, error) {
	score := 0.9
	return []model.RetrievalResult{
		{Node: model.Node{Text: "clause text", Metadata: map[string]string{"source": "/docs/a.pdf"}}, Score: &score},
	}, nil
}

type fakeAnswerer struct{}

func (fakeAnswerer) Generate(ctx context.Context, query string, results []model.RetrievalResult, opts llm.GenerateOpts) (*llm.GenerationResult, error) {
	return &llm.GenerationResult{Answer: query + "-reply", Confidence: 0.8}, nil
}

func TestChat_CreatesSessionAndReturnsAnswer(t *testing.T) {
	deps := ChatDeps{Sessions: newFakeChatSessions(), Retriever: fakeChatRetriever{}, Generator: fakeAnswerer{}, TopK: 5}
	handler := Chat(deps)

	body, _ := json.Marshal(chatRequest{Message: "A"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false, error = %v", resp.Error)
	}
}

func TestChat_ContinuesExistingSession(t *testing.T) {
	sessions := newFakeChatSessions()
	deps := ChatDeps{Sessions: sessions, Retriever: fakeChatRetriever{}, Generator: fakeAnswerer{}, TopK: 5}
	handler := Chat(deps)

	body1, _ := json.Marshal(chatRequest{Message: "A"})
	req1 := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body1))
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	var data1 struct {
		Success bool         `json:"success"`
		Data    chatResponse `json:"data"`
	}
	json.Unmarshal(rec1.Body.Bytes(), &data1)
	sessionID := data1.Data.SessionID
	if sessionID == "" {
		t.Fatal("expected a session_id to be assigned")
	}

	body2, _ := json.Marshal(chatRequest{Message: "B", SessionID: sessionID})
	req2 := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body2))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	sess := sessions.sessions[sessionID]
	if sess == nil || len(sess.Messages) != 4 {
		t.Fatalf("expected 4 messages (A, A-reply, B, B-reply), got %+v", sess)
	}
	roles := []string{sess.Messages[0].Role, sess.Messages[1].Role, sess.Messages[2].Role, sess.Messages[3].Role}
	want := []string{"user", "assistant", "user", "assistant"}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("message[%d].Role = %q, want %q", i, roles[i], want[i])
		}
	}
}

func TestChat_EmptyMessageRejected(t *testing.T) {
	deps := ChatDeps{Sessions: newFakeChatSessions(), Retriever: fakeChatRetriever{}, Generator: fakeAnswerer{}}
	handler := Chat(deps)

	body, _ := json.Marshal(chatRequest{Message: ""})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
