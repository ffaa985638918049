// Package telegram distributes published articles to a Telegram channel
// via the bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"heartofnews/internal/domain"
	"heartofnews/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Publisher posts one message per published article.
type Publisher struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers the bot token and chat identifier.
func NewPublisher(botToken, chatID string) *Publisher {
	return &Publisher{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Publish sends the article digest as a Markdown message.
func (p *Publisher) Publish(ctx context.Context, article domain.Article) error {
	if p.botToken == "" || p.chatID == "" {
		return fmt.Errorf("telegram publisher misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", p.apiBase, p.botToken)
	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("text", formatMessage(article))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

func formatMessage(article domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", article.Title)
	if article.Summary != "" {
		fmt.Fprintf(&b, "%s\n", article.Summary)
	}
	if article.Score != nil {
		fmt.Fprintf(&b, "Bias: %.2f | Emotional: %.2f | Fact ratio: %.2f\n",
			article.Score.PoliticalBias,
			article.Score.EmotionalLanguage,
			article.Score.FactOpinionRatio)
	}
	b.WriteString(article.URL)
	return b.String()
}
