package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/connexus-ai/legalrag-backend/internal/model"
)

type stubRetriever struct {
	results []model.RetrievalResult
	err     error
}

func (s stubRetriever) Retrieve(ctx context.Context, question string, topK int, useEnhancer, useReranking bool) ([]model.RetrievalResult, error) {
	return s.results, s.err
}

func TestRetrieve_ReturnsDocuments(t *testing.T) {
	score := 0.8
	engine := stubRetriever{results: []model.RetrievalResult{
		{Node: model.Node{Text: "t1", Metadata: map[string]string{"source": "/docs/a.pdf"}}, Score: &score},
	}}
	handler := Retrieve(engine)

	body, _ := json.Marshal(retrieveRequest{Query: "data protection", TopK: 5})
	req := httptest.NewRequest(http.MethodPost, "/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %T", resp.Data)
	}
	docs, ok := data["documents"].([]interface{})
	if !ok || len(docs) != 1 {
		t.Fatalf("expected 1 document, got %+v", data["documents"])
	}
	doc := docs[0].(map[string]interface{})
	if doc["score"] != 0.8 {
		t.Errorf("score = %v, want 0.8", doc["score"])
	}
	meta, ok := doc["metadata"].(map[string]interface{})
	if !ok || meta["enhanced"] != false || meta["reranked"] != false {
		t.Errorf("unexpected metadata: %+v", doc["metadata"])
	}
}

func TestRetrieve_NullScoreWhenReranked(t *testing.T) {
	engine := stubRetriever{results: []model.RetrievalResult{
		{Node: model.Node{Text: "t1"}, Score: nil, Metadata: model.RetrievalMetadata{Reranked: true}},
	}}
	handler := Retrieve(engine)

	body, _ := json.Marshal(retrieveRequest{Query: "data protection", TopK: 5, UseReranking: true})
	req := httptest.NewRequest(http.MethodPost, "/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data := resp.Data.(map[string]interface{})
	docs := data["documents"].([]interface{})
	doc := docs[0].(map[string]interface{})
	if doc["score"] != nil {
		t.Errorf("expected null score after reranking, got %v", doc["score"])
	}
	meta := doc["metadata"].(map[string]interface{})
	if meta["reranked"] != true {
		t.Errorf("expected reranked=true in metadata, got %+v", meta)
	}
}

func TestRetrieve_EmptyQueryRejected(t *testing.T) {
	handler := Retrieve(stubRetriever{})

	body, _ := json.Marshal(retrieveRequest{Query: ""})
	req := httptest.NewRequest(http.MethodPost, "/retrieve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
