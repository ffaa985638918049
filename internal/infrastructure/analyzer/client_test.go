package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["content"] != "article text" {
			t.Errorf("content = %q", payload["content"])
		}
		_, _ = w.Write([]byte(`{
			"political_bias": -0.4,
			"emotional_language": 0.6,
			"fact_opinion_ratio": 0.3,
			"sentiment": -0.1
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	score, err := client.Analyze(context.Background(), "article text")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if score.PoliticalBias != -0.4 || score.EmotionalLanguage != 0.6 {
		t.Fatalf("score = %+v", score)
	}
	if score.FactOpinionRatio != 0.3 || score.Sentiment != -0.1 {
		t.Fatalf("score = %+v", score)
	}
	if score.AnalyzedAt.IsZero() {
		t.Fatal("AnalyzedAt not set")
	}
}

func TestAnalyzeNoKeyOmitsAuthorization(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("authorization = %q, want empty", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	if _, err := client.Analyze(context.Background(), "text"); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
}

func TestAnalyzeServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	if _, err := client.Analyze(context.Background(), "text"); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	if _, err := client.Analyze(context.Background(), "text"); err == nil {
		t.Fatal("expected decode error")
	}
}
