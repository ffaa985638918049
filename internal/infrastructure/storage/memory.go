package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"heartofnews/internal/domain"
	"heartofnews/internal/ports"
)

// Memory is a mutex-guarded in-process store implementing every storage
// port. It backs the memory storage driver and the package tests; the CAS
// transition semantics match the Postgres adapter.
type Memory struct {
	mu       sync.Mutex
	articles map[string]domain.Article
	byURL    map[string]string
	sources  map[string]domain.Source
	runs     []domain.JobRun
}

var (
	_ ports.ArticleStore = (*Memory)(nil)
	_ ports.SourceStore  = (*Memory)(nil)
	_ ports.JobRunStore  = (*Memory)(nil)
)

// NewMemory builds an empty store.
func NewMemory() *Memory {
	return &Memory{
		articles: map[string]domain.Article{},
		byURL:    map[string]string{},
		sources:  map[string]domain.Source{},
	}
}

// GetByURL implements ports.ArticleStore.
func (m *Memory) GetByURL(_ context.Context, url string) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byURL[url]
	if !ok {
		return nil, nil
	}
	article := m.articles[id]
	return &article, nil
}

// GetByFingerprint implements ports.ArticleStore.
func (m *Memory) GetByFingerprint(_ context.Context, fp string, within time.Duration) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-within)
	for _, article := range m.articles {
		if article.Fingerprint == fp && article.DiscoveredAt.After(cutoff) {
			found := article
			return &found, nil
		}
	}
	return nil, nil
}

// InsertDrafts implements ports.ArticleStore. Rows whose URL already
// exists are skipped, mirroring the conditional insert in Postgres.
func (m *Memory) InsertDrafts(_ context.Context, articles []domain.Article) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, article := range articles {
		if _, exists := m.byURL[article.URL]; exists {
			continue
		}
		m.articles[article.ID] = article
		m.byURL[article.URL] = article.ID
		ids = append(ids, article.ID)
	}
	return ids, nil
}

// SelectByStatus implements ports.ArticleStore, FIFO by discovery time.
func (m *Memory) SelectByStatus(_ context.Context, status domain.Status, limit int) ([]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.Article
	for _, article := range m.articles {
		if article.Status == status {
			matched = append(matched, article)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].DiscoveredAt.Before(matched[j].DiscoveredAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// TransitionStatus implements ports.ArticleStore. A pair the lifecycle
// forbids is an error; the compare-and-set itself is atomic under the
// store lock, so a retried or overlapping job observing a stale status
// gets false, never a double transition.
func (m *Memory) TransitionStatus(_ context.Context, id string, from, to domain.Status, patch domain.ArticlePatch) (bool, error) {
	if !domain.IsTransitionAllowed(from, to) {
		return false, fmt.Errorf("illegal status transition from %s to %s", from, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	article, ok := m.articles[id]
	if !ok || article.Status != from {
		return false, nil
	}

	article.Status = to
	if patch.Score != nil {
		score := *patch.Score
		article.Score = &score
	}
	if patch.Attempts != nil {
		article.Attempts = *patch.Attempts
	}
	if patch.LastError != nil {
		article.LastError = *patch.LastError
	}
	m.articles[id] = article
	return true, nil
}

// Import implements ports.SourceStore, preserving crawl cadence state on
// re-import.
func (m *Memory) Import(_ context.Context, sources []domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, src := range sources {
		if existing, ok := m.sources[src.ID]; ok {
			src.LastCrawledAt = existing.LastCrawledAt
		}
		m.sources[src.ID] = src
	}
	return nil
}

// Get implements ports.SourceStore.
func (m *Memory) Get(_ context.Context, id string) (*domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[id]
	if !ok {
		return nil, nil
	}
	return &src, nil
}

// Due implements ports.SourceStore, ordered by id for stable batches.
func (m *Memory) Due(_ context.Context, now time.Time) ([]domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []domain.Source
	for _, src := range m.sources {
		if src.Due(now) {
			due = append(due, src)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

// MarkCrawled implements ports.SourceStore.
func (m *Memory) MarkCrawled(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.sources[id]
	if !ok {
		return nil
	}
	src.LastCrawledAt = at
	m.sources[id] = src
	return nil
}

// Record implements ports.JobRunStore.
func (m *Memory) Record(_ context.Context, run domain.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// History implements ports.JobRunStore, newest first.
func (m *Memory) History(_ context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var runs []domain.JobRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Job != jobName {
			continue
		}
		runs = append(runs, m.runs[i])
		if limit > 0 && len(runs) >= limit {
			break
		}
	}
	return runs, nil
}
