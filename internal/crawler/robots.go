package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsGate checks URLs against each site's robots.txt. Policies are fetched
// lazily per scheme and host and cached for the lifetime of the gate.
type RobotsGate struct {
	httpClient   *HTTPClient
	rateLimiter  *RateLimiter
	ignoreRobots bool

	mu       sync.RWMutex
	policies map[string]*robotstxt.Group // nil group allows everything
	inflight singleflight.Group
	fetches  atomic.Int64
}

// NewRobotsGate creates a gate. Crawl-delay directives are forwarded to
// rateLimiter when it is not nil.
func NewRobotsGate(httpClient *HTTPClient, rateLimiter *RateLimiter, ignoreRobots bool) *RobotsGate {
	return &RobotsGate{
		httpClient:   httpClient,
		rateLimiter:  rateLimiter,
		ignoreRobots: ignoreRobots,
		policies:     make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether the "*" group of the URL's robots.txt permits it.
// An unreachable or unreadable robots.txt allows everything.
func (r *RobotsGate) Allowed(ctx context.Context, urlStr string) bool {
	if r.ignoreRobots {
		return true
	}

	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return false
	}

	group := r.policy(ctx, u)
	if group == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

// Fetches returns how many robots.txt documents were requested
func (r *RobotsGate) Fetches() int64 {
	return r.fetches.Load()
}

// policy returns the cached group for the URL's site, fetching it once
func (r *RobotsGate) policy(ctx context.Context, u *url.URL) *robotstxt.Group {
	site := u.Scheme + "://" + u.Host

	r.mu.RLock()
	group, ok := r.policies[site]
	r.mu.RUnlock()
	if ok {
		return group
	}

	v, _, _ := r.inflight.Do(site, func() (any, error) {
		r.mu.RLock()
		group, ok := r.policies[site]
		r.mu.RUnlock()
		if ok {
			return group, nil
		}

		group = r.fetch(ctx, site)

		// A fetch cut short by cancellation says nothing about the site
		if ctx.Err() != nil {
			return group, nil
		}

		r.mu.Lock()
		r.policies[site] = group
		r.mu.Unlock()

		if group != nil && group.CrawlDelay > 0 && r.rateLimiter != nil {
			r.rateLimiter.SetDomainDelay(u.Host, group.CrawlDelay)
			slog.Debug("Applying robots crawl delay", "site", site,
				"crawl_delay", group.CrawlDelay, "delay", r.rateLimiter.Delay(u.Host))
		}
		return group, nil
	})

	group, _ = v.(*robotstxt.Group)
	return group
}

// fetch retrieves and parses robots.txt; any failure yields an empty policy
func (r *RobotsGate) fetch(ctx context.Context, site string) *robotstxt.Group {
	r.fetches.Add(1)
	robotsURL := site + "/robots.txt"

	resp, err := r.httpClient.Get(ctx, robotsURL)
	if err != nil {
		slog.Debug("robots.txt unavailable, allowing all", "url", robotsURL, "error", err)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		slog.Debug("robots.txt not found, allowing all", "url", robotsURL, "status_code", resp.StatusCode)
		return nil
	}

	data, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		slog.Warn("Failed to parse robots.txt, allowing all", "url", robotsURL, "error", err)
		return nil
	}
	return data.FindGroup("*")
}
