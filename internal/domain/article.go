package domain

import "time"

// ScoreRecord holds the bias-analysis metrics returned by the analyzer.
// Values are normalized to [0, 1] except PoliticalBias, which spans
// [-1, 1] (negative = left-leaning, positive = right-leaning).
type ScoreRecord struct {
	PoliticalBias     float64
	EmotionalLanguage float64
	FactOpinionRatio  float64
	Sentiment         float64
	AnalyzedAt        time.Time
}

// Article is the canonical entity driven through the publication lifecycle.
// URL is the primary de-duplication key; Fingerprint is the secondary one,
// consulted only within a configurable time window.
type Article struct {
	ID           string
	SourceID     string
	URL          string
	Title        string
	Summary      string
	Content      string
	Author       string
	Tags         []string
	ImageURL     string
	PublishedAt  *time.Time
	DiscoveredAt time.Time
	Fingerprint  string
	Status       Status
	Score        *ScoreRecord
	Attempts     int
	LastError    string
}

// ArticlePatch carries the optional fields a status transition may update
// alongside the status itself. Nil fields are left untouched.
type ArticlePatch struct {
	Score     *ScoreRecord
	Attempts  *int
	LastError *string
}

// Text returns the best available body for analysis: full content when the
// fetcher obtained it, the summary otherwise.
func (a Article) Text() string {
	if a.Content != "" {
		return a.Content
	}
	return a.Summary
}
