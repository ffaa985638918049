package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"heartofnews/internal/domain"
)

const sampleListing = `<html><body>
  <article><h2><a href="/stories/alpha">Alpha Headline</a></h2></article>
  <article><h2><a href="/stories/beta">Beta Headline</a></h2></article>
  <article><h2><a href="/stories/alpha">Alpha Again</a></h2></article>
  <div><a href="mailto:tips@example.org">tips</a></div>
</body></html>`

func TestPageFetcherListingOnly(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleListing))
	}))
	defer server.Close()

	src := domain.Source{
		ID:       "page-1",
		URL:      server.URL,
		Strategy: domain.StrategyPage,
		Selectors: domain.PageSelectors{
			Link: "article h2 a",
		},
	}

	f := NewPageFetcher(server.Client(), nil)
	items, err := f.Fetch(context.Background(), src, 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	// Repeated and non-http links are dropped.
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Link != server.URL+"/stories/alpha" {
		t.Fatalf("relative links must resolve against the listing, got %s", items[0].Link)
	}
	if items[0].Title != "Alpha Headline" {
		t.Fatalf("unexpected title: %q", items[0].Title)
	}
}

func TestPageFetcherFullContent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><article><h3><a href="/stories/alpha">Alpha</a></h3></article></body></html>`)
	})
	mux.HandleFunc("/stories/alpha", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><head>
  <meta name="description" content="A short description.">
  <meta property="article:published_time" content="2025-11-08T06:30:00Z">
  <meta name="author" content="R. Porter">
</head><body>
  <h1>Alpha Full Headline</h1>
  <div class="story">
    <p>Paragraph one.</p>
    <p>ADVERTISEMENT</p>
    <script>track()</script>
  </div>
</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := domain.Source{
		ID:       "page-2",
		URL:      server.URL,
		Strategy: domain.StrategyPage,
		Selectors: domain.PageSelectors{
			Link:    "article h3 a",
			Content: ".story",
		},
	}

	f := NewPageFetcher(server.Client(), nil)
	items, err := f.Fetch(context.Background(), src, 10)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.Title != "Alpha Full Headline" {
		t.Fatalf("unexpected title: %q", item.Title)
	}
	if !strings.Contains(item.Content, "Paragraph one.") {
		t.Fatalf("content missing body text: %q", item.Content)
	}
	if strings.Contains(item.Content, "ADVERTISEMENT") || strings.Contains(item.Content, "track()") {
		t.Fatalf("content still holds ads or scripts: %q", item.Content)
	}
	if item.Published != "2025-11-08T06:30:00Z" {
		t.Fatalf("unexpected published: %q", item.Published)
	}
	if item.Author != "R. Porter" {
		t.Fatalf("unexpected author: %q", item.Author)
	}
	if item.Summary != "A short description." {
		t.Fatalf("unexpected summary: %q", item.Summary)
	}
}

func TestPageFetcherDegradesPerLinkFailures(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><article><h2><a href="/gone">Gone Story</a></h2></article></body></html>`)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := domain.Source{
		ID:        "page-3",
		URL:       server.URL,
		Strategy:  domain.StrategyPage,
		Selectors: domain.PageSelectors{Link: "article h2 a", Content: ".story"},
	}

	f := NewPageFetcher(server.Client(), nil)
	items, err := f.Fetch(context.Background(), src, 10)
	if err != nil {
		t.Fatalf("a failed article fetch must not fail the source: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Gone Story" {
		t.Fatalf("expected link-only fallback item, got %+v", items)
	}
}

func TestPageFetcherNoItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Nothing to see.</p></body></html>`))
	}))
	defer server.Close()

	src := domain.Source{
		ID:        "page-4",
		URL:       server.URL,
		Strategy:  domain.StrategyPage,
		Selectors: domain.PageSelectors{Link: ".missing a"},
	}

	f := NewPageFetcher(server.Client(), nil)
	_, err := f.Fetch(context.Background(), src, 10)
	if !IsNoItems(err) {
		t.Fatalf("missing locator matches must be a no-items outcome, got %v", err)
	}
}
