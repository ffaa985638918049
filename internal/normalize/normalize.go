// Package normalize maps raw fetched items into canonical article drafts.
// Normalization is total: unparseable fields degrade to zero values or
// nil, never to an error.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"heartofnews/internal/domain"
	"heartofnews/internal/fetch"
)

const (
	summaryMaxRunes  = 500
	fingerprintBytes = 512
)

// dateLayouts are tried in order against raw published timestamps. Feeds
// and article pages disagree wildly on formats; anything unmatched stays
// nil rather than failing the record.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// Normalize converts one raw item plus its source into an article draft.
// Pure, no I/O; discovered-at is stamped from now.
func Normalize(raw fetch.RawItem, src domain.Source, now time.Time) domain.Article {
	link := resolveLink(raw.Link, src.URL)
	body := raw.Content
	if body == "" {
		body = raw.Summary
	}

	title := strings.TrimSpace(StripHTML(raw.Title))
	plain := StripHTML(body)

	return domain.Article{
		ID:           uuid.NewString(),
		SourceID:     src.ID,
		URL:          link,
		Title:        title,
		Summary:      truncate(collapseWhitespace(firstNonEmpty(StripHTML(raw.Summary), plain)), summaryMaxRunes),
		Content:      SanitizeHTML(body),
		Author:       strings.TrimSpace(raw.Author),
		Tags:         raw.Tags,
		ImageURL:     strings.TrimSpace(raw.ImageURL),
		PublishedAt:  ParseTimestamp(raw.Published),
		DiscoveredAt: now.UTC(),
		Fingerprint:  Fingerprint(title, plain),
		Status:       domain.StatusDraft,
	}
}

// resolveLink resolves a possibly relative item link against the source
// base URL. An unparseable link is kept verbatim; de-duplication still
// works on the raw string.
func resolveLink(link, base string) string {
	link = strings.TrimSpace(link)
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return link
	}
	return baseURL.ResolveReference(ref).String()
}

// StripHTML reduces markup to plain text. Input that is not HTML passes
// through unchanged.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}

// SanitizeHTML keeps the HTML body for storage but drops active and
// presentational elements.
func SanitizeHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find("script, style, iframe, object, embed").Remove()
	html, err := doc.Find("body").Html()
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html)
}

// ParseTimestamp parses a raw published timestamp with a tolerant
// multi-layout parser, returning nil when nothing matches.
func ParseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Fingerprint hashes the normalized (lower-cased, whitespace-collapsed)
// title plus the leading slice of the plain-text body. It is the secondary
// duplicate key when URLs legitimately vary.
func Fingerprint(title, body string) string {
	normalized := collapseWhitespace(strings.ToLower(title)) + "\n" +
		head(collapseWhitespace(strings.ToLower(body)), fingerprintBytes)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func truncate(s string, runes int) string {
	r := []rune(s)
	if len(r) <= runes {
		return s
	}
	return string(r[:runes])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
