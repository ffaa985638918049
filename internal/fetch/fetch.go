// Package fetch retrieves raw news items from configured sources. Two
// strategies exist, feed (RSS/Atom) and page (HTML listing scrape), sharing
// nothing but the Fetcher contract.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"heartofnews/internal/domain"
)

const userAgent = "HeartOfNews/1.0"

// RawItem is the ephemeral, source-local shape of one discovered item. It
// lives only between a fetch call and normalization; it is never persisted.
type RawItem struct {
	Link      string
	Title     string
	Summary   string
	Content   string
	Author    string
	Published string
	Tags      []string
	ImageURL  string
}

// ErrorKind classifies fetch failures so the coordinator can tell expected
// empties apart from genuine failures without string matching.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindTimeout
	KindParse
	KindNoItems
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindNoItems:
		return "no_items"
	default:
		return "network"
	}
}

// Error is a per-source fetch failure. It never aborts a crawl batch; the
// coordinator records it against the owning source.
type Error struct {
	Kind     ErrorKind
	SourceID string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: source %s", e.Kind, e.SourceID)
	}
	return fmt.Sprintf("fetch %s: source %s: %v", e.Kind, e.SourceID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNoItems reports whether err means the source simply had nothing new,
// a normal outcome distinct from network or parse failure.
func IsNoItems(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindNoItems
}

// classify wraps a transport error, distinguishing timeouts so the
// coordinator can apply its own retry policy. Fetchers never retry.
func classify(sourceID string, err error) *Error {
	kind := KindNetwork
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, SourceID: sourceID, Err: err}
}

// Fetcher pulls up to limit raw items from one source.
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source, limit int) ([]RawItem, error)
}

// Selector binds each source to its strategy implementation once, at
// source-load time, instead of dispatching dynamically per call.
type Selector struct {
	feed Fetcher
	page Fetcher
}

// NewSelector wires the two strategy variants.
func NewSelector(feed, page Fetcher) *Selector {
	return &Selector{feed: feed, page: page}
}

// ForSource resolves the fetcher for the source's strategy tag.
func (s *Selector) ForSource(src domain.Source) (Fetcher, error) {
	switch src.Strategy {
	case domain.StrategyFeed:
		return s.feed, nil
	case domain.StrategyPage:
		return s.page, nil
	default:
		return nil, fmt.Errorf("source %s: unknown fetch strategy %q", src.ID, src.Strategy)
	}
}

func newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}
