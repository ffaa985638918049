// Package analyze runs the analysis stage: draft articles are scored by
// the external analyzer and advanced to processing, or parked in error
// once their retry cap is exhausted.
package analyze

import (
	"context"
	"fmt"
	"log/slog"

	"heartofnews/internal/domain"
	"heartofnews/internal/ports"
)

const (
	defaultBatchSize   = 20
	defaultMaxAttempts = 3
)

// Stage pulls draft articles oldest-first and calls the analyzer once per
// article per run. A failed article is retried only on the next scheduled
// run, bounded by the attempt cap.
type Stage struct {
	articles ports.ArticleStore
	analyzer ports.Analyzer
	logger   *slog.Logger

	batchSize   int
	maxAttempts int
}

// New constructs the stage; batchSize and maxAttempts fall back to
// defaults when non-positive.
func New(articles ports.ArticleStore, analyzer ports.Analyzer, logger *slog.Logger, batchSize, maxAttempts int) *Stage {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		articles:    articles,
		analyzer:    analyzer,
		logger:      logger,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Run processes one batch of drafts, FIFO by discovery time so a flood of
// new articles cannot starve older ones.
func (s *Stage) Run(ctx context.Context) (domain.JobReport, error) {
	drafts, err := s.articles.SelectByStatus(ctx, domain.StatusDraft, s.batchSize)
	if err != nil {
		return domain.JobReport{}, fmt.Errorf("select drafts: %w", err)
	}

	report := domain.JobReport{Attempted: len(drafts)}
	for _, article := range drafts {
		if err := s.analyzeOne(ctx, article); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("article %s: %v", article.ID, err))
			continue
		}
		report.Succeeded++
	}

	if len(drafts) > 0 {
		s.logger.Info("analysis finished",
			"attempted", report.Attempted,
			"failed", report.Failed,
			"outcome", report.Outcome())
	}
	return report, nil
}

func (s *Stage) analyzeOne(ctx context.Context, article domain.Article) error {
	score, err := s.analyzer.Analyze(ctx, article.Text())
	if err != nil {
		return s.recordFailure(ctx, article, err)
	}

	ok, err := s.articles.TransitionStatus(ctx, article.ID,
		domain.StatusDraft, domain.StatusProcessing,
		domain.ArticlePatch{Score: &score})
	if err != nil {
		return fmt.Errorf("transition to processing: %w", err)
	}
	if !ok {
		// Another worker already advanced this article; not a failure.
		s.logger.Debug("analysis transition skipped", "article", article.ID)
	}
	return nil
}

// recordFailure bumps the attempt counter under the same CAS guard. At the
// cap the article moves to error and stays there until an operator
// re-queues it; below the cap it remains draft for the next run.
func (s *Stage) recordFailure(ctx context.Context, article domain.Article, cause error) error {
	attempts := article.Attempts + 1
	detail := cause.Error()
	patch := domain.ArticlePatch{Attempts: &attempts, LastError: &detail}

	to := domain.StatusDraft
	if attempts >= s.maxAttempts {
		to = domain.StatusError
	}

	ok, err := s.articles.TransitionStatus(ctx, article.ID, domain.StatusDraft, to, patch)
	if err != nil {
		return fmt.Errorf("record analyzer failure: %w", err)
	}
	if ok && to == domain.StatusError {
		s.logger.Warn("article exhausted analysis attempts",
			"article", article.ID, "attempts", attempts, "error", detail)
	}
	return fmt.Errorf("analyze: %w", cause)
}
