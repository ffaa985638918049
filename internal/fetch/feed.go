package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"heartofnews/internal/domain"
)

// FeedFetcher implements the feed strategy over RSS and Atom syndication
// feeds. Malformed feed content is a parse failure attributed to the
// source, never a panic or a batch abort.
type FeedFetcher struct {
	client *http.Client
	parser *gofeed.Parser
	logger *slog.Logger
}

var _ Fetcher = (*FeedFetcher)(nil)

// NewFeedFetcher wires an HTTP client; a nil client gets the default with
// a 20s per-request timeout.
func NewFeedFetcher(client *http.Client, logger *slog.Logger) *FeedFetcher {
	if client == nil {
		client = defaultClient()
	}
	return &FeedFetcher{client: client, parser: gofeed.NewParser(), logger: logger}
}

// Fetch downloads and parses the source's feed, returning up to limit items
// in feed order.
func (f *FeedFetcher) Fetch(ctx context.Context, src domain.Source, limit int) ([]RawItem, error) {
	feedURL := src.FeedURL
	if feedURL == "" {
		feedURL = src.URL
	}

	req, err := newRequest(ctx, feedURL)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, SourceID: src.ID, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(src.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindNetwork, SourceID: src.ID, Err: fmt.Errorf("feed returned %s", resp.Status)}
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindParse, SourceID: src.ID, Err: err}
	}

	if len(feed.Items) == 0 {
		return nil, &Error{Kind: KindNoItems, SourceID: src.ID}
	}

	items := make([]RawItem, 0, min(limit, len(feed.Items)))
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		if entry == nil || strings.TrimSpace(entry.Link) == "" {
			continue
		}
		items = append(items, feedItem(entry))
	}

	if f.logger != nil {
		f.logger.Debug("feed fetched", "source", src.ID, "entries", len(feed.Items), "items", len(items))
	}

	if len(items) == 0 {
		return nil, &Error{Kind: KindNoItems, SourceID: src.ID}
	}
	return items, nil
}

func feedItem(entry *gofeed.Item) RawItem {
	item := RawItem{
		Link:      entry.Link,
		Title:     strings.TrimSpace(entry.Title),
		Summary:   entry.Description,
		Content:   entry.Content,
		Published: entry.Published,
		Tags:      entry.Categories,
	}

	if item.Published == "" {
		item.Published = entry.Updated
	}
	if entry.Author != nil {
		item.Author = strings.TrimSpace(entry.Author.Name)
	}

	if entry.Image != nil {
		item.ImageURL = entry.Image.URL
	}
	if item.ImageURL == "" {
		for _, enc := range entry.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				item.ImageURL = enc.URL
				break
			}
		}
	}

	return item
}
