package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"heartofnews/internal/domain"
)

func testPublisher(apiBase string) *Publisher {
	p := NewPublisher("token", "@news")
	p.apiBase = apiBase
	return p
}

func TestPublishSendsMessage(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText, gotMode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		gotMode = r.PostFormValue("parse_mode")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	article := domain.Article{
		Title:   "Big story",
		Summary: "Short summary.",
		URL:     "https://example.com/story",
		Score: &domain.ScoreRecord{
			PoliticalBias:     0.1,
			EmotionalLanguage: 0.2,
			FactOpinionRatio:  0.9,
			AnalyzedAt:        time.Now().UTC(),
		},
	}
	if err := testPublisher(server.URL).Publish(context.Background(), article); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if gotPath != "/bottoken/sendMessage" {
		t.Errorf("path = %s", gotPath)
	}
	if gotChat != "@news" || gotMode != "Markdown" {
		t.Errorf("chat = %q, mode = %q", gotChat, gotMode)
	}
	for _, want := range []string{"*Big story*", "Short summary.", "Fact ratio: 0.90", "https://example.com/story"} {
		if !strings.Contains(gotText, want) {
			t.Errorf("message missing %q:\n%s", want, gotText)
		}
	}
}

func TestPublishOmitsEmptySections(t *testing.T) {
	t.Parallel()

	msg := formatMessage(domain.Article{Title: "Plain", URL: "https://example.com/p"})
	if strings.Contains(msg, "Bias:") {
		t.Errorf("unscored article rendered a score line:\n%s", msg)
	}
	if msg != "*Plain*\nhttps://example.com/p" {
		t.Errorf("message = %q", msg)
	}
}

func TestPublishAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer server.Close()

	err := testPublisher(server.URL).Publish(context.Background(), domain.Article{Title: "x"})
	if err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestPublishMisconfigured(t *testing.T) {
	t.Parallel()

	p := NewPublisher("", "")
	if err := p.Publish(context.Background(), domain.Article{Title: "x"}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}
