// Package analyzer talks to the external bias-analysis service. The
// pipeline treats scoring as opaque; this client only forwards text and
// maps the fixed-shape response.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"heartofnews/internal/domain"
	"heartofnews/internal/ports"
)

// Client posts article text to the analysis endpoint.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Analyzer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

type analyzeResponse struct {
	PoliticalBias     float64 `json:"political_bias"`
	EmotionalLanguage float64 `json:"emotional_language"`
	FactOpinionRatio  float64 `json:"fact_opinion_ratio"`
	Sentiment         float64 `json:"sentiment"`
}

// Analyze sends the text for scoring and returns the score record.
func (c *Client) Analyze(ctx context.Context, text string) (domain.ScoreRecord, error) {
	body, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ScoreRecord{}, fmt.Errorf("analyzer returned %s", resp.Status)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("decode response: %w", err)
	}

	return domain.ScoreRecord{
		PoliticalBias:     parsed.PoliticalBias,
		EmotionalLanguage: parsed.EmotionalLanguage,
		FactOpinionRatio:  parsed.FactOpinionRatio,
		Sentiment:         parsed.Sentiment,
		AnalyzedAt:        time.Now().UTC(),
	}, nil
}
