package analyze

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"heartofnews/internal/domain"
	"heartofnews/internal/infrastructure/storage"
)

type stubAnalyzer struct {
	err   error
	hook  func(ctx context.Context, text string)
	calls int
}

func (s *stubAnalyzer) Analyze(ctx context.Context, text string) (domain.ScoreRecord, error) {
	s.calls++
	if s.hook != nil {
		s.hook(ctx, text)
	}
	if s.err != nil {
		return domain.ScoreRecord{}, s.err
	}
	return domain.ScoreRecord{
		PoliticalBias:     0.1,
		EmotionalLanguage: 0.2,
		FactOpinionRatio:  0.9,
		Sentiment:         0.0,
		AnalyzedAt:        time.Now().UTC(),
	}, nil
}

func draft(id, url string, discovered time.Time) domain.Article {
	return domain.Article{
		ID:           id,
		SourceID:     "src",
		URL:          url,
		Title:        "Title " + id,
		Content:      "body " + id,
		Status:       domain.StatusDraft,
		DiscoveredAt: discovered,
	}
}

func mustGet(t *testing.T, store *storage.Memory, url string) domain.Article {
	t.Helper()
	article, err := store.GetByURL(context.Background(), url)
	if err != nil {
		t.Fatalf("GetByURL: %v", err)
	}
	if article == nil {
		t.Fatalf("article %s not found", url)
	}
	return *article
}

func TestRunScoresDrafts(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	now := time.Now().UTC()
	if _, err := store.InsertDrafts(context.Background(), []domain.Article{
		draft("a1", "https://example.com/1", now.Add(-2*time.Minute)),
		draft("a2", "https://example.com/2", now.Add(-time.Minute)),
	}); err != nil {
		t.Fatalf("InsertDrafts: %v", err)
	}

	analyzer := &stubAnalyzer{}
	stage := New(store, analyzer, slog.Default(), 0, 0)

	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Attempted != 2 || report.Succeeded != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Outcome() != domain.OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", report.Outcome())
	}

	for _, url := range []string{"https://example.com/1", "https://example.com/2"} {
		got := mustGet(t, store, url)
		if got.Status != domain.StatusProcessing {
			t.Errorf("%s status = %s, want processing", url, got.Status)
		}
		if got.Score == nil {
			t.Errorf("%s has no score", url)
		}
	}
}

func TestRunRetryCapParksArticleInError(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	now := time.Now().UTC()
	if _, err := store.InsertDrafts(context.Background(), []domain.Article{
		draft("bad", "https://example.com/bad", now),
	}); err != nil {
		t.Fatalf("InsertDrafts: %v", err)
	}

	analyzer := &stubAnalyzer{err: errors.New("analyzer unavailable")}
	stage := New(store, analyzer, slog.Default(), 10, 3)

	for run := 1; run <= 3; run++ {
		report, err := stage.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if report.Failed != 1 {
			t.Fatalf("run %d failed = %d, want 1", run, report.Failed)
		}

		got := mustGet(t, store, "https://example.com/bad")
		if got.Attempts != run {
			t.Fatalf("run %d attempts = %d, want %d", run, got.Attempts, run)
		}
		wantStatus := domain.StatusDraft
		if run == 3 {
			wantStatus = domain.StatusError
		}
		if got.Status != wantStatus {
			t.Fatalf("run %d status = %s, want %s", run, got.Status, wantStatus)
		}
		if !strings.Contains(got.LastError, "analyzer unavailable") {
			t.Fatalf("run %d last error = %q", run, got.LastError)
		}
	}

	// Parked articles are no longer drafts, so the next run sees nothing.
	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("final run: %v", err)
	}
	if report.Attempted != 0 {
		t.Fatalf("final run attempted = %d, want 0", report.Attempted)
	}
}

func TestRunFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	now := time.Now().UTC()
	if _, err := store.InsertDrafts(context.Background(), []domain.Article{
		draft("bad", "https://example.com/bad", now.Add(-time.Minute)),
		draft("good", "https://example.com/good", now),
	}); err != nil {
		t.Fatalf("InsertDrafts: %v", err)
	}

	analyzer := &stubAnalyzer{}
	analyzer.hook = func(_ context.Context, text string) {
		if strings.Contains(text, "bad") {
			analyzer.err = errors.New("boom")
		} else {
			analyzer.err = nil
		}
	}
	stage := New(store, analyzer, slog.Default(), 10, 3)

	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Attempted != 2 || report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Outcome() != domain.OutcomePartial {
		t.Fatalf("outcome = %s, want partial", report.Outcome())
	}

	if got := mustGet(t, store, "https://example.com/good"); got.Status != domain.StatusProcessing {
		t.Fatalf("good status = %s, want processing", got.Status)
	}
	if got := mustGet(t, store, "https://example.com/bad"); got.Status != domain.StatusDraft {
		t.Fatalf("bad status = %s, want draft", got.Status)
	}
}

func TestRunSkipsConcurrentlyAdvancedArticle(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	if _, err := store.InsertDrafts(context.Background(), []domain.Article{
		draft("a1", "https://example.com/1", time.Now().UTC()),
	}); err != nil {
		t.Fatalf("InsertDrafts: %v", err)
	}

	// Another worker advances the article between the select and the
	// transition. The stale transition must be a no-op, not a failure.
	analyzer := &stubAnalyzer{}
	analyzer.hook = func(ctx context.Context, _ string) {
		if _, err := store.TransitionStatus(ctx, "a1",
			domain.StatusDraft, domain.StatusProcessing, domain.ArticlePatch{}); err != nil {
			t.Errorf("concurrent transition: %v", err)
		}
	}
	stage := New(store, analyzer, slog.Default(), 10, 3)

	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 0 || report.Succeeded != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := mustGet(t, store, "https://example.com/1"); got.Status != domain.StatusProcessing {
		t.Fatalf("status = %s, want processing", got.Status)
	}
}

func TestRunHonorsBatchSize(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	now := time.Now().UTC()
	var drafts []domain.Article
	for i := 0; i < 5; i++ {
		drafts = append(drafts, draft(
			string(rune('a'+i)),
			"https://example.com/"+string(rune('a'+i)),
			now.Add(time.Duration(i)*time.Second)))
	}
	if _, err := store.InsertDrafts(context.Background(), drafts); err != nil {
		t.Fatalf("InsertDrafts: %v", err)
	}

	stage := New(store, &stubAnalyzer{}, slog.Default(), 2, 3)
	report, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Attempted != 2 {
		t.Fatalf("attempted = %d, want 2", report.Attempted)
	}

	// Oldest drafts go first.
	for _, url := range []string{"https://example.com/a", "https://example.com/b"} {
		if got := mustGet(t, store, url); got.Status != domain.StatusProcessing {
			t.Fatalf("%s status = %s, want processing", url, got.Status)
		}
	}
	if got := mustGet(t, store, "https://example.com/c"); got.Status != domain.StatusDraft {
		t.Fatalf("c status = %s, want draft", got.Status)
	}
}
