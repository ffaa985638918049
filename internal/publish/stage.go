// Package publish runs the publishing stage: processing articles pass a
// deterministic policy gate into published or rejected, and published ones
// are handed off to the downstream distribution channel.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"heartofnews/internal/domain"
	"heartofnews/internal/ports"
)

const (
	defaultBatchSize   = 20
	defaultReliability = 0.5
)

// Stage pulls processing articles oldest-first, gates them, and emits
// hand-off records for published ones. A hand-off failure never reverts
// status: status reflects pipeline completion, not distribution success.
type Stage struct {
	articles  ports.ArticleStore
	sources   ports.SourceStore
	publisher ports.Publisher
	policy    Policy
	logger    *slog.Logger
	batchSize int
}

// New constructs the stage. publisher may be nil when no distribution
// channel is configured; articles still advance to published.
func New(articles ports.ArticleStore, sources ports.SourceStore, publisher ports.Publisher, policy Policy, logger *slog.Logger, batchSize int) *Stage {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		articles:  articles,
		sources:   sources,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Run gates one batch of processing articles, FIFO by discovery time.
func (s *Stage) Run(ctx context.Context) (domain.JobReport, error) {
	pending, err := s.articles.SelectByStatus(ctx, domain.StatusProcessing, s.batchSize)
	if err != nil {
		return domain.JobReport{}, fmt.Errorf("select processing: %w", err)
	}

	report := domain.JobReport{Attempted: len(pending)}
	for _, article := range pending {
		if err := s.publishOne(ctx, article); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("article %s: %v", article.ID, err))
			continue
		}
		report.Succeeded++
	}

	if len(pending) > 0 {
		s.logger.Info("publishing finished",
			"attempted", report.Attempted,
			"failed", report.Failed,
			"outcome", report.Outcome())
	}
	return report, nil
}

func (s *Stage) publishOne(ctx context.Context, article domain.Article) error {
	to := domain.StatusPublished
	if s.decide(ctx, article) == Reject {
		to = domain.StatusRejected
	}

	ok, err := s.articles.TransitionStatus(ctx, article.ID,
		domain.StatusProcessing, to, domain.ArticlePatch{})
	if err != nil {
		return fmt.Errorf("transition to %s: %w", to, err)
	}
	if !ok {
		// Another worker already advanced this article; skip silently.
		s.logger.Debug("publish transition skipped", "article", article.ID)
		return nil
	}

	if to == domain.StatusPublished && s.publisher != nil {
		article.Status = to
		if pErr := s.publisher.Publish(ctx, article); pErr != nil {
			// Distribution is a separately retryable concern outside the
			// article state machine.
			s.logger.Error("publisher hand-off failed",
				"article", article.ID, "url", article.URL, "error", pErr)
		}
	}
	return nil
}

// decide resolves the source reliability prior and applies the gate. An
// article with no score record (should not happen past analysis) and an
// unknown source both degrade to neutral inputs.
func (s *Stage) decide(ctx context.Context, article domain.Article) Decision {
	reliability := defaultReliability
	if src, err := s.sources.Get(ctx, article.SourceID); err == nil && src != nil {
		reliability = src.Reliability
	}

	var score domain.ScoreRecord
	if article.Score != nil {
		score = *article.Score
	}
	return s.policy.Evaluate(score, reliability)
}
