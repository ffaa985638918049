package ports

import (
	"context"
	"time"

	"heartofnews/internal/domain"
)

// ArticleStore persists articles and enforces the lifecycle invariants at
// the storage boundary: URL uniqueness on insert and compare-and-set
// status transitions.
type ArticleStore interface {
	// GetByURL returns the article with the exact URL, or nil when absent.
	GetByURL(ctx context.Context, url string) (*domain.Article, error)

	// GetByFingerprint returns an article whose fingerprint matches and
	// whose discovery time falls inside the window, or nil when absent.
	GetByFingerprint(ctx context.Context, fp string, within time.Duration) (*domain.Article, error)

	// InsertDrafts stores new draft articles in one batch, skipping rows
	// whose URL already exists, and returns the ids actually inserted.
	InsertDrafts(ctx context.Context, articles []domain.Article) ([]string, error)

	// SelectByStatus returns up to limit articles in the given status,
	// oldest discovered first.
	SelectByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Article, error)

	// TransitionStatus atomically moves an article between statuses, applying the
	// patch, and reports false when the current status no longer matches
	// from. A (from, to) pair the lifecycle forbids is an error, never a
	// silent write. from == to patches fields without advancing the
	// lifecycle.
	TransitionStatus(ctx context.Context, id string, from, to domain.Status, patch domain.ArticlePatch) (bool, error)
}

// SourceStore holds per-source crawl configuration and cadence state.
type SourceStore interface {
	// Import upserts externally supplied source configuration. Crawl
	// cadence state (last-crawled-at) is preserved on update.
	Import(ctx context.Context, sources []domain.Source) error

	// Get returns the source by id, or nil when absent.
	Get(ctx context.Context, id string) (*domain.Source, error)

	// Due returns the sources whose crawl interval has elapsed at now.
	Due(ctx context.Context, now time.Time) ([]domain.Source, error)

	// MarkCrawled updates last-crawled-at regardless of fetch outcome.
	MarkCrawled(ctx context.Context, id string, at time.Time) error
}

// JobRunStore keeps the execution history of named periodic jobs.
type JobRunStore interface {
	Record(ctx context.Context, run domain.JobRun) error
	History(ctx context.Context, job string, limit int) ([]domain.JobRun, error)
}

// Analyzer scores article text for bias. The scoring model itself is an
// external collaborator; the pipeline only relies on this contract.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (domain.ScoreRecord, error)
}

// Publisher hands a published article to a downstream distribution channel.
// Failures are the caller's concern to log, never to revert status on.
type Publisher interface {
	Publish(ctx context.Context, article domain.Article) error
}
