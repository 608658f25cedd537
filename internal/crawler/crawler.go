// Package crawler provides the focused crawl loop.
// It fetches the most relevant known page first, scores every link found on
// it against the query and feeds the links back into a priority frontier,
// honouring robots.txt and a per-host request delay along the way.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/masahif/focuscrawl/internal/config"
	"github.com/masahif/focuscrawl/internal/frontier"
	"github.com/masahif/focuscrawl/internal/parser"
	"github.com/masahif/focuscrawl/internal/relevance"
)

// Journal metadata keys
const (
	MetaStartURL   = "start_url"
	MetaQuery      = "query"
	MetaState      = "state"
	MetaStartedAt  = "started_at"
	MetaFinishedAt = "finished_at"
	MetaPagesSaved = "pages_saved"
)

// FocusedCrawler implements the Crawler interface
type FocusedCrawler struct {
	config      *config.CrawlConfig
	docs        DocumentStore
	journal     Journal
	httpClient  *HTTPClient
	processor   PageProcessor
	rateLimiter *RateLimiter
	gate        Gate
	scope       *ScopeFilter
	query       relevance.Query
	seedURL     string

	frontier *frontier.Frontier
	seen     *SeenSet

	// State
	stats      CrawlStats
	statsMutex sync.RWMutex
	cancel     context.CancelFunc
	cancelMu   sync.Mutex
}

// NewCrawler creates a crawler for cfg that writes pages to docs and records
// the run in journal. A nil journal disables recording.
func NewCrawler(cfg *config.CrawlConfig, docs DocumentStore, journal Journal) (*FocusedCrawler, error) {
	if docs == nil {
		return nil, errors.New("document store is required")
	}
	if journal == nil {
		journal = NopJournal{}
	}

	seedURL, err := parser.NormalizeURL(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}

	scope, err := NewScopeFilter(cfg.Scope, seedURL)
	if err != nil {
		return nil, err
	}

	httpClient := NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout)
	rateLimiter := NewRateLimiter(cfg.RequestDelay)

	return &FocusedCrawler{
		config:      cfg,
		docs:        docs,
		journal:     journal,
		httpClient:  httpClient,
		processor:   NewPageProcessor(httpClient, cfg.LenientContentType),
		rateLimiter: rateLimiter,
		gate:        NewRobotsGate(httpClient, rateLimiter, cfg.IgnoreRobots),
		scope:       scope,
		query:       relevance.NewQuery(cfg.Query),
		seedURL:     seedURL,
		frontier:    frontier.New(),
		seen:        NewSeenSet(),
		stats: CrawlStats{
			State: StateSeeded,
		},
	}, nil
}

// Run crawls until the frontier is empty, max_pages pages have been saved
// or ctx is cancelled. Fetch failures are not errors; only a failure to
// write a document aborts the run.
func (c *FocusedCrawler) Run(ctx context.Context) (*CrawlStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()

	c.statsMutex.Lock()
	c.stats.StartTime = time.Now()
	c.stats.State = StateRunning
	c.statsMutex.Unlock()

	slog.Info("Starting crawler", "start_url", c.seedURL, "query", c.config.Query,
		"query_words", c.query.Words(), "max_pages", c.config.MaxPages)
	c.setMeta(MetaStartURL, c.seedURL)
	c.setMeta(MetaQuery, c.config.Query)
	c.setMeta(MetaStartedAt, time.Now().UTC().Format(time.RFC3339))

	if err := c.frontier.Insert(c.seedURL, parser.DerivedName(c.seedURL), 0); err == nil {
		slog.Debug("Adding to queue", "url", c.seedURL, "score", 0)
	}

	state, err := c.loop(ctx)
	c.finish(state)

	stats := c.GetStats()
	if err != nil {
		return &stats, err
	}
	slog.Info("Crawling completed", "state", stats.State, "pages_saved", stats.PagesSaved,
		"discarded", stats.Discarded(), "remaining", stats.Remaining, "duration", stats.Duration)
	return &stats, nil
}

func (c *FocusedCrawler) loop(ctx context.Context) (CrawlState, error) {
	for {
		if ctx.Err() != nil {
			return StateCancelled, nil
		}
		if c.seen.Len() >= c.config.MaxPages {
			return StateBudgetReached, nil
		}

		cand, err := c.frontier.PopBest()
		if errors.Is(err, frontier.ErrEmpty) {
			return StateExhausted, nil
		}

		done, err := c.visit(ctx, cand)
		if err != nil {
			return StateAborted, err
		}
		if done {
			return StateBudgetReached, nil
		}
	}
}

// visit fetches one candidate and expands its links. It returns true once
// the page budget is reached.
func (c *FocusedCrawler) visit(ctx context.Context, cand frontier.Candidate) (bool, error) {
	result := c.fetch(ctx, cand)

	switch result.Outcome {
	case OutcomeRejected:
		slog.Info("URL disallowed by robots.txt", "url", cand.URL)
		c.updateStats(func(s *CrawlStats) { s.RobotsRejected++ })
		c.saveError(result.Error)
		return false, nil

	case OutcomeFailed:
		if ctx.Err() != nil {
			return false, nil
		}
		slog.Warn("Failed to fetch URL", "url", cand.URL, "error", result.Error.ErrorMessage)
		c.updateStats(func(s *CrawlStats) { s.FetchFailed++ })
		c.saveError(result.Error)
		return false, nil

	case OutcomeNotHTML:
		c.updateStats(func(s *CrawlStats) { s.NotHTML++ })
		return false, nil

	case OutcomeFetched:
		return c.handleFetched(cand, result)
	}

	return false, fmt.Errorf("unknown fetch outcome %d", result.Outcome)
}

// fetch runs the politeness gate, the rate limiter and the page processor
func (c *FocusedCrawler) fetch(ctx context.Context, cand frontier.Candidate) *FetchResult {
	if !c.gate.Allowed(ctx, cand.URL) {
		return &FetchResult{
			Outcome: OutcomeRejected,
			Error: &CrawlError{
				URL:          cand.URL,
				ErrorType:    ErrorTypeRobots,
				ErrorMessage: "Disallowed by robots.txt",
				OccurredAt:   time.Now().UTC(),
			},
		}
	}

	if err := c.rateLimiter.Wait(ctx, cand.URL); err != nil {
		return &FetchResult{
			Outcome: OutcomeFailed,
			Error: &CrawlError{
				URL:          cand.URL,
				ErrorType:    ErrorTypeNetwork,
				ErrorMessage: err.Error(),
				OccurredAt:   time.Now().UTC(),
			},
		}
	}

	slog.Debug("Downloading", "url", cand.URL, "score", cand.Score)
	return c.processor.Fetch(ctx, cand.URL)
}

func (c *FocusedCrawler) handleFetched(cand frontier.Candidate, result *FetchResult) (bool, error) {
	c.seen.Add(cand.URL)

	path, err := c.docs.Save(cand.Name, result.Body)
	if err != nil {
		return false, fmt.Errorf("failed to save document for %s: %w", cand.URL, err)
	}
	slog.Debug("Received", "url", cand.URL, "name", cand.Name, "path", path, "bytes", len(result.Body))

	var parsed *parser.ParseResult
	if p, err := parser.NewHTMLParser(result.FinalURL); err == nil {
		if parsed, err = p.Parse(result.Body); err != nil {
			slog.Warn("Failed to parse page", "url", cand.URL, "error", err)
		}
	}

	page := result.Page
	page.Name = cand.Name
	page.Score = cand.Score
	if parsed != nil {
		page.Title = parsed.Title
		page.ContentHash = parsed.ContentHash
	}
	if err := c.journal.SavePage(page); err != nil {
		slog.Error("Failed to journal page", "url", cand.URL, "error", err)
	}

	c.updateStats(func(s *CrawlStats) { s.PagesSaved++ })
	slog.Info("Saved page", "url", cand.URL, "score", cand.Score, "name", cand.Name)

	if c.seen.Len() >= c.config.MaxPages {
		return true, nil
	}
	if parsed != nil {
		c.expand(cand.URL, string(result.Body), parsed.Anchors)
	}
	return false, nil
}

// expand scores every followable anchor of a fetched page and inserts or
// rescores its target in the frontier
func (c *FocusedCrawler) expand(sourceURL, page string, anchors []parser.Anchor) {
	now := time.Now().UTC()
	links := make([]*LinkData, 0, len(anchors))

	for _, anchor := range anchors {
		target := anchor.URL
		if c.seen.Contains(target) || c.frontier.Retired(target) || !c.scope.InScope(target) {
			continue
		}

		score := relevance.Score(anchor, page, c.query)
		links = append(links, &LinkData{
			SourceURL:    sourceURL,
			TargetURL:    target,
			AnchorText:   anchor.Text,
			Score:        score,
			DiscoveredAt: now,
		})

		if current, queued := c.frontier.Score(target); queued {
			if score == 0 {
				slog.Debug("Already queued", "url", target, "score", current)
				continue
			}
			total, err := c.frontier.AddScore(target, score)
			if err == nil {
				slog.Debug("Adding score", "url", target, "delta", score, "score", total)
				c.updateStats(func(s *CrawlStats) { s.LinksRescored++ })
			}
			continue
		}

		if err := c.frontier.Insert(target, parser.DerivedName(target), score); err == nil {
			slog.Debug("Adding to queue", "url", target, "score", score)
			c.updateStats(func(s *CrawlStats) { s.LinksQueued++ })
		}
	}

	if err := c.journal.SaveLinks(links); err != nil {
		slog.Error("Failed to journal links", "url", sourceURL, "error", err)
	}
}

func (c *FocusedCrawler) finish(state CrawlState) {
	c.statsMutex.Lock()
	c.stats.State = state
	c.stats.Remaining = c.frontier.Len()
	c.stats.Duration = time.Since(c.stats.StartTime)
	if gate, ok := c.gate.(*RobotsGate); ok {
		c.stats.RobotsFetches = int(gate.Fetches())
	}
	pages := c.stats.PagesSaved
	c.statsMutex.Unlock()

	c.setMeta(MetaState, string(state))
	c.setMeta(MetaPagesSaved, strconv.Itoa(pages))
	c.setMeta(MetaFinishedAt, time.Now().UTC().Format(time.RFC3339))
}

// Stop stops the crawling process
func (c *FocusedCrawler) Stop() error {
	c.cancelMu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancelMu.Unlock()
	c.httpClient.Close()
	return nil
}

// GetStats returns current crawling statistics
func (c *FocusedCrawler) GetStats() CrawlStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()

	stats := c.stats
	if !stats.State.Done() {
		stats.Remaining = c.frontier.Len()
		if !stats.StartTime.IsZero() {
			stats.Duration = time.Since(stats.StartTime)
		}
	}
	return stats
}

// Frontier exposes the crawl frontier for inspection
func (c *FocusedCrawler) Frontier() *frontier.Frontier {
	return c.frontier
}

// Seen exposes the URLs saved so far
func (c *FocusedCrawler) Seen() *SeenSet {
	return c.seen
}

func (c *FocusedCrawler) updateStats(fn func(*CrawlStats)) {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	fn(&c.stats)
}

func (c *FocusedCrawler) saveError(crawlErr *CrawlError) {
	if crawlErr == nil {
		return
	}
	if err := c.journal.SaveError(crawlErr); err != nil {
		slog.Error("Failed to journal error", "url", crawlErr.URL, "error", err)
	}
}

func (c *FocusedCrawler) setMeta(key, value string) {
	if err := c.journal.SetMeta(key, value); err != nil {
		slog.Error("Failed to journal metadata", "key", key, "error", err)
	}
}

var _ Crawler = (*FocusedCrawler)(nil)
