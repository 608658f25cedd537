package crawler

import (
	"context"
)

// Crawler defines the main crawling interface
type Crawler interface {
	Run(ctx context.Context) (*CrawlStats, error)
	Stop() error
	GetStats() CrawlStats
}

// PageProcessor fetches a single page
type PageProcessor interface {
	Fetch(ctx context.Context, url string) *FetchResult
}

// Gate decides whether a URL may be fetched
type Gate interface {
	Allowed(ctx context.Context, url string) bool
}

// DocumentStore persists fetched documents by name
type DocumentStore interface {
	Save(name string, body []byte) (string, error)
}

// Journal records a crawl run
type Journal interface {
	SavePage(page *PageData) error
	SaveLinks(links []*LinkData) error
	SaveError(err *CrawlError) error
	SetMeta(key, value string) error
	Close() error
}

// NopJournal discards everything
type NopJournal struct{}

func (NopJournal) SavePage(*PageData) error     { return nil }
func (NopJournal) SaveLinks([]*LinkData) error  { return nil }
func (NopJournal) SaveError(*CrawlError) error  { return nil }
func (NopJournal) SetMeta(string, string) error { return nil }
func (NopJournal) Close() error                 { return nil }
