// Package redisq hands published articles to downstream distribution
// workers through a Redis list.
package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"heartofnews/internal/domain"
	"heartofnews/internal/ports"
)

const defaultQueue = "heartofnews:published"

// Publisher pushes one JSON payload per published article onto the queue.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher parses redisURL, verifies connectivity, and targets queue
// (the default list name when empty).
func NewPublisher(ctx context.Context, redisURL, queue string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if queue == "" {
		queue = defaultQueue
	}
	return &Publisher{rdb: client, queue: queue}, nil
}

// handoff is the wire shape consumed by distribution workers.
type handoff struct {
	ID          string              `json:"id"`
	SourceID    string              `json:"sourceId"`
	URL         string              `json:"url"`
	Title       string              `json:"title"`
	Summary     string              `json:"summary,omitempty"`
	ImageURL    string              `json:"imageUrl,omitempty"`
	PublishedAt *time.Time          `json:"publishedAt,omitempty"`
	Score       *domain.ScoreRecord `json:"score,omitempty"`
	EmittedAt   time.Time           `json:"emittedAt"`
}

// Publish enqueues the article hand-off record.
func (p *Publisher) Publish(ctx context.Context, article domain.Article) error {
	payload, err := json.Marshal(handoff{
		ID:          article.ID,
		SourceID:    article.SourceID,
		URL:         article.URL,
		Title:       article.Title,
		Summary:     article.Summary,
		ImageURL:    article.ImageURL,
		PublishedAt: article.PublishedAt,
		Score:       article.Score,
		EmittedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal handoff: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queue, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", p.queue, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
