package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"heartofnews/internal/domain"
)

// defaultLinkSelector covers common listing layouts when a source does not
// configure its own locator.
const defaultLinkSelector = "article a[href], h2 a[href], h3 a[href]"

// unwantedSelector matches chrome and ads stripped from article pages
// before content extraction.
const unwantedSelector = "script, style, nav, header, footer, .ad, .advertisement, .social-share, .comments, .sidebar, .related-articles"

var adPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ADVERTISEMENT`),
	regexp.MustCompile(`(?i)Sponsored Content`),
	regexp.MustCompile(`(?i)Click here to[^.]*`),
	regexp.MustCompile(`(?i)Subscribe to[^.]*`),
	regexp.MustCompile(`(?i)Follow us on[^.]*`),
	regexp.MustCompile(`(?i)Share this article`),
}

// PageFetcher implements the page strategy: it scrapes a listing page for
// candidate article links via configured locators, then optionally fetches
// each article page for full content. A listing with no matching links is
// a no-items outcome, not a failure.
type PageFetcher struct {
	client *http.Client
	logger *slog.Logger
}

var _ Fetcher = (*PageFetcher)(nil)

// NewPageFetcher wires an HTTP client; nil gets the default with a 20s
// per-request timeout.
func NewPageFetcher(client *http.Client, logger *slog.Logger) *PageFetcher {
	if client == nil {
		client = defaultClient()
	}
	return &PageFetcher{client: client, logger: logger}
}

// Fetch scrapes the source's listing page and returns up to limit items in
// discovery order. When a content locator is configured, each link gets a
// second fetch; a failed per-link fetch degrades that item to link-only
// rather than failing the source.
func (p *PageFetcher) Fetch(ctx context.Context, src domain.Source, limit int) ([]RawItem, error) {
	doc, err := p.document(ctx, src.ID, src.URL)
	if err != nil {
		return nil, err
	}

	links := p.extractLinks(doc, src)
	if len(links) == 0 {
		return nil, &Error{Kind: KindNoItems, SourceID: src.ID}
	}
	if len(links) > limit {
		links = links[:limit]
	}

	items := make([]RawItem, 0, len(links))
	for _, link := range links {
		item := RawItem{Link: link.href, Title: link.title}
		if src.Selectors.Content != "" {
			if full, fErr := p.fetchArticle(ctx, src, link.href); fErr == nil {
				item = full
			} else if p.logger != nil {
				p.logger.Warn("article fetch degraded to link-only", "source", src.ID, "url", link.href, "error", fErr)
			}
		}
		items = append(items, item)
	}

	return items, nil
}

type pageLink struct {
	href  string
	title string
}

func (p *PageFetcher) extractLinks(doc *goquery.Document, src domain.Source) []pageLink {
	selector := src.Selectors.Link
	if selector == "" {
		selector = defaultLinkSelector
	}

	base, _ := url.Parse(src.URL)
	seen := map[string]struct{}{}
	var links []pageLink

	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			href, ok = sel.Find("a[href]").First().Attr("href")
		}
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		abs := resolveHref(base, href)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, pageLink{href: abs, title: strings.TrimSpace(sel.Text())})
	})

	return links
}

// fetchArticle performs the second fetch for one candidate link and
// extracts full content via the source's locators with meta-tag fallbacks.
func (p *PageFetcher) fetchArticle(ctx context.Context, src domain.Source, articleURL string) (RawItem, error) {
	doc, err := p.document(ctx, src.ID, articleURL)
	if err != nil {
		return RawItem{}, err
	}

	doc.Find(unwantedSelector).Remove()

	item := RawItem{Link: articleURL}

	titleSel := src.Selectors.Title
	if titleSel == "" {
		titleSel = "h1"
	}
	item.Title = strings.TrimSpace(doc.Find(titleSel).First().Text())
	if item.Title == "" {
		item.Title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	}

	if content := doc.Find(src.Selectors.Content).First(); content.Length() > 0 {
		if html, hErr := content.Html(); hErr == nil {
			item.Content = scrubAds(html)
		}
	}

	if src.Selectors.Date != "" {
		item.Published = strings.TrimSpace(doc.Find(src.Selectors.Date).First().AttrOr("datetime", ""))
		if item.Published == "" {
			item.Published = strings.TrimSpace(doc.Find(src.Selectors.Date).First().Text())
		}
	}
	if item.Published == "" {
		item.Published, _ = doc.Find(`meta[property="article:published_time"]`).Attr("content")
	}

	if src.Selectors.Author != "" {
		item.Author = strings.TrimSpace(doc.Find(src.Selectors.Author).First().Text())
	}
	if item.Author == "" {
		item.Author, _ = doc.Find(`meta[name="author"]`).Attr("content")
	}

	item.Summary, _ = doc.Find(`meta[name="description"]`).Attr("content")
	if item.Summary == "" {
		item.Summary, _ = doc.Find(`meta[property="og:description"]`).Attr("content")
	}

	item.ImageURL, _ = doc.Find(`meta[property="og:image"]`).Attr("content")

	return item, nil
}

func (p *PageFetcher) document(ctx context.Context, sourceID, pageURL string) (*goquery.Document, error) {
	req, err := newRequest(ctx, pageURL)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, SourceID: sourceID, Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classify(sourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindNetwork, SourceID: sourceID, Err: fmt.Errorf("page returned %s", resp.Status)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindParse, SourceID: sourceID, Err: err}
	}
	return doc, nil
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func scrubAds(html string) string {
	for _, expr := range adPhrases {
		html = expr.ReplaceAllString(html, "")
	}
	return strings.TrimSpace(html)
}
