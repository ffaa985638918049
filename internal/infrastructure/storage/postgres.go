// Package storage provides the article, source, and job-run stores. The
// Postgres adapter is the production driver; Memory serves development and
// tests with identical semantics.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"heartofnews/internal/domain"
	"heartofnews/internal/ports"
)

var articleColumns = []string{
	"id", "source_id", "url", "title", "summary", "content", "author",
	"tags", "image_url", "published_at", "discovered_at", "fingerprint",
	"status", "political_bias", "emotional_language", "fact_opinion_ratio",
	"sentiment", "analyzed_at", "attempts", "last_error",
}

var sourceColumns = []string{
	"id", "name", "url", "feed_url", "strategy", "link_selector",
	"title_selector", "content_selector", "date_selector", "author_selector",
	"crawl_interval_seconds", "reliability", "last_crawled_at",
}

// Postgres persists the pipeline state. Status transitions are conditional
// updates keyed on the expected prior status, so the CAS invariant is
// enforced by the database, not by application logic.
type Postgres struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

var (
	_ ports.ArticleStore = (*Postgres)(nil)
	_ ports.SourceStore  = (*Postgres)(nil)
	_ ports.JobRunStore  = (*Postgres)(nil)
)

// NewPostgres connects a pgx pool and verifies connectivity.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Postgres{pool: pool, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// GetByURL implements ports.ArticleStore.
func (p *Postgres) GetByURL(ctx context.Context, url string) (*domain.Article, error) {
	query, args, err := p.sb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return p.queryArticle(ctx, query, args)
}

// GetByFingerprint implements ports.ArticleStore.
func (p *Postgres) GetByFingerprint(ctx context.Context, fp string, within time.Duration) (*domain.Article, error) {
	cutoff := time.Now().UTC().Add(-within)
	query, args, err := p.sb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"fingerprint": fp}).
		Where(sq.Gt{"discovered_at": cutoff}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return p.queryArticle(ctx, query, args)
}

// InsertDrafts implements ports.ArticleStore. The conditional insert skips
// URLs that already exist, keeping re-crawls of an unchanged source
// idempotent even when two crawl runs race.
func (p *Postgres) InsertDrafts(ctx context.Context, articles []domain.Article) ([]string, error) {
	var ids []string
	for _, a := range articles {
		builder := p.sb.Insert("articles").
			Columns("id", "source_id", "url", "title", "summary", "content",
				"author", "tags", "image_url", "published_at", "discovered_at",
				"fingerprint", "status", "attempts").
			Values(a.ID, a.SourceID, a.URL, a.Title, a.Summary, a.Content,
				a.Author, a.Tags, a.ImageURL, a.PublishedAt, a.DiscoveredAt,
				a.Fingerprint, a.Status, a.Attempts).
			Suffix("ON CONFLICT (url) DO NOTHING RETURNING id")

		query, args, err := builder.ToSql()
		if err != nil {
			return ids, fmt.Errorf("build insert: %w", err)
		}

		var id string
		err = p.pool.QueryRow(ctx, query, args...).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue // concurrent crawl inserted the same URL first
		}
		if err != nil {
			return ids, fmt.Errorf("insert draft %s: %w", a.URL, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SelectByStatus implements ports.ArticleStore, FIFO by discovery time.
func (p *Postgres) SelectByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Article, error) {
	query, args, err := p.sb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"status": status}).
		OrderBy("discovered_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select by status: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, sErr := scanArticle(rows)
		if sErr != nil {
			return nil, sErr
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// TransitionStatus implements ports.ArticleStore as a single conditional
// UPDATE; zero rows affected means the expected status no longer matched.
// A pair the lifecycle forbids is rejected before touching the database.
func (p *Postgres) TransitionStatus(ctx context.Context, id string, from, to domain.Status, patch domain.ArticlePatch) (bool, error) {
	if !domain.IsTransitionAllowed(from, to) {
		return false, fmt.Errorf("illegal status transition from %s to %s", from, to)
	}

	builder := p.sb.Update("articles").
		Set("status", to).
		Where(sq.Eq{"id": id, "status": from})

	if patch.Score != nil {
		builder = builder.
			Set("political_bias", patch.Score.PoliticalBias).
			Set("emotional_language", patch.Score.EmotionalLanguage).
			Set("fact_opinion_ratio", patch.Score.FactOpinionRatio).
			Set("sentiment", patch.Score.Sentiment).
			Set("analyzed_at", patch.Score.AnalyzedAt)
	}
	if patch.Attempts != nil {
		builder = builder.Set("attempts", *patch.Attempts)
	}
	if patch.LastError != nil {
		builder = builder.Set("last_error", *patch.LastError)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition %s from %s to %s: %w", id, from, to, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Import implements ports.SourceStore. Configuration fields are updated on
// conflict; last_crawled_at is owned by the coordinator and left alone.
func (p *Postgres) Import(ctx context.Context, sources []domain.Source) error {
	for _, s := range sources {
		query, args, err := p.sb.Insert("sources").
			Columns("id", "name", "url", "feed_url", "strategy",
				"link_selector", "title_selector", "content_selector",
				"date_selector", "author_selector",
				"crawl_interval_seconds", "reliability").
			Values(s.ID, s.Name, s.URL, s.FeedURL, s.Strategy,
				s.Selectors.Link, s.Selectors.Title, s.Selectors.Content,
				s.Selectors.Date, s.Selectors.Author,
				int64(s.CrawlInterval/time.Second), s.Reliability).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				url = EXCLUDED.url,
				feed_url = EXCLUDED.feed_url,
				strategy = EXCLUDED.strategy,
				link_selector = EXCLUDED.link_selector,
				title_selector = EXCLUDED.title_selector,
				content_selector = EXCLUDED.content_selector,
				date_selector = EXCLUDED.date_selector,
				author_selector = EXCLUDED.author_selector,
				crawl_interval_seconds = EXCLUDED.crawl_interval_seconds,
				reliability = EXCLUDED.reliability`).
			ToSql()
		if err != nil {
			return fmt.Errorf("build import: %w", err)
		}
		if _, err := p.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("import source %s: %w", s.ID, err)
		}
	}
	return nil
}

// Get implements ports.SourceStore.
func (p *Postgres) Get(ctx context.Context, id string) (*domain.Source, error) {
	query, args, err := p.sb.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	src, err := scanSource(p.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// Due implements ports.SourceStore.
func (p *Postgres) Due(ctx context.Context, now time.Time) ([]domain.Source, error) {
	query, args, err := p.sb.Select(sourceColumns...).
		From("sources").
		Where(sq.Expr(
			"last_crawled_at IS NULL OR last_crawled_at + make_interval(secs => crawl_interval_seconds) <= ?",
			now)).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select due sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, sErr := scanSource(rows)
		if sErr != nil {
			return nil, sErr
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// MarkCrawled implements ports.SourceStore.
func (p *Postgres) MarkCrawled(ctx context.Context, id string, at time.Time) error {
	query, args, err := p.sb.Update("sources").
		Set("last_crawled_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark crawled %s: %w", id, err)
	}
	return nil
}

// Record implements ports.JobRunStore.
func (p *Postgres) Record(ctx context.Context, run domain.JobRun) error {
	query, args, err := p.sb.Insert("job_runs").
		Columns("id", "job", "started_at", "finished_at", "next_eligible_at",
			"outcome", "attempted", "succeeded", "failed", "errors").
		Values(run.ID, run.Job, run.StartedAt, run.FinishedAt, run.NextEligibleAt,
			run.Outcome, run.Attempted, run.Succeeded, run.Failed, run.Errors).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("record run %s: %w", run.Job, err)
	}
	return nil
}

// History implements ports.JobRunStore, newest first.
func (p *Postgres) History(ctx context.Context, jobName string, limit int) ([]domain.JobRun, error) {
	query, args, err := p.sb.Select("id", "job", "started_at", "finished_at",
		"next_eligible_at", "outcome", "attempted", "succeeded", "failed", "errors").
		From("job_runs").
		Where(sq.Eq{"job": jobName}).
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.JobRun
	for rows.Next() {
		var run domain.JobRun
		var outcome string
		if err := rows.Scan(&run.ID, &run.Job, &run.StartedAt, &run.FinishedAt,
			&run.NextEligibleAt, &outcome, &run.Attempted, &run.Succeeded,
			&run.Failed, &run.Errors); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Outcome = domain.JobOutcome(outcome)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (p *Postgres) queryArticle(ctx context.Context, query string, args []any) (*domain.Article, error) {
	article, err := scanArticle(p.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// row covers pgx.Row and pgx.Rows for the scan helpers.
type row interface {
	Scan(dest ...any) error
}

func scanArticle(r row) (domain.Article, error) {
	var (
		a          domain.Article
		status     string
		lastError  *string
		bias       *float64
		emotional  *float64
		factRatio  *float64
		sentiment  *float64
		analyzedAt *time.Time
	)
	err := r.Scan(&a.ID, &a.SourceID, &a.URL, &a.Title, &a.Summary,
		&a.Content, &a.Author, &a.Tags, &a.ImageURL, &a.PublishedAt,
		&a.DiscoveredAt, &a.Fingerprint, &status, &bias, &emotional,
		&factRatio, &sentiment, &analyzedAt, &a.Attempts, &lastError)
	if err != nil {
		return domain.Article{}, err
	}

	a.Status, err = domain.ParseStatus(status)
	if err != nil {
		return domain.Article{}, fmt.Errorf("article %s: %w", a.ID, err)
	}
	if lastError != nil {
		a.LastError = *lastError
	}
	if analyzedAt != nil {
		a.Score = &domain.ScoreRecord{
			PoliticalBias:     deref(bias),
			EmotionalLanguage: deref(emotional),
			FactOpinionRatio:  deref(factRatio),
			Sentiment:         deref(sentiment),
			AnalyzedAt:        *analyzedAt,
		}
	}
	return a, nil
}

func scanSource(r row) (domain.Source, error) {
	var (
		s               domain.Source
		strategy        string
		intervalSeconds int64
		lastCrawled     *time.Time
	)
	err := r.Scan(&s.ID, &s.Name, &s.URL, &s.FeedURL, &strategy,
		&s.Selectors.Link, &s.Selectors.Title, &s.Selectors.Content,
		&s.Selectors.Date, &s.Selectors.Author,
		&intervalSeconds, &s.Reliability, &lastCrawled)
	if err != nil {
		return domain.Source{}, err
	}

	s.Strategy = domain.FetchStrategy(strategy)
	s.CrawlInterval = time.Duration(intervalSeconds) * time.Second
	if lastCrawled != nil {
		s.LastCrawledAt = *lastCrawled
	}
	return s, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
