package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func robotsServer(t *testing.T, status int, robotsTxt string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			if hits != nil {
				hits.Add(1)
			}
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(robotsTxt))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRobotsGate(t *testing.T) {
	robotsTxt := `
User-agent: *
Disallow: /admin/
Disallow: /private/
Allow: /private/public/
Disallow: /search?q=

User-agent: Googlebot
Disallow: /no-google/
`
	server := robotsServer(t, http.StatusOK, robotsTxt, nil)

	httpClient := NewHTTPClient("Test-Crawler/1.0", 30*time.Second)
	defer httpClient.Close()

	gate := NewRobotsGate(httpClient, nil, false)
	ctx := context.Background()

	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{"Root allowed", server.URL + "/", true},
		{"Empty path allowed", server.URL, true},
		{"Admin disallowed", server.URL + "/admin/page", false},
		{"Private disallowed", server.URL + "/private/x", false},
		{"Private public allowed", server.URL + "/private/public/page", true},
		{"Other path allowed", server.URL + "/blog/post", true},
		{"Other agent's rule ignored", server.URL + "/no-google/page", true},
		{"Query disallowed", server.URL + "/search?q=widgets", false},
		{"Path without query allowed", server.URL + "/search", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if allowed := gate.Allowed(ctx, tt.url); allowed != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, allowed)
			}
		})
	}

	if gate.Fetches() != 1 {
		t.Errorf("Expected robots.txt to be fetched once, got %d", gate.Fetches())
	}
}

func TestRobotsGateIgnore(t *testing.T) {
	var hits atomic.Int64
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /\n", &hits)

	httpClient := NewHTTPClient("Test-Crawler/1.0", 30*time.Second)
	defer httpClient.Close()

	gate := NewRobotsGate(httpClient, nil, true)

	if !gate.Allowed(context.Background(), server.URL+"/admin/secret") {
		t.Errorf("Expected true when ignoring robots.txt, got false")
	}
	if hits.Load() != 0 {
		t.Errorf("Expected no robots.txt request when ignoring, got %d", hits.Load())
	}
}

func TestRobotsGateUnreadable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"Not found", http.StatusNotFound, ""},
		{"Server error", http.StatusInternalServerError, "User-agent: *\nDisallow: /\n"},
		{"Forbidden", http.StatusForbidden, "User-agent: *\nDisallow: /\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := robotsServer(t, tt.status, tt.body, nil)

			httpClient := NewHTTPClient("Test-Crawler/1.0", 30*time.Second)
			defer httpClient.Close()

			gate := NewRobotsGate(httpClient, nil, false)
			if !gate.Allowed(context.Background(), server.URL+"/private/x") {
				t.Errorf("Expected unreadable robots.txt to allow all")
			}
		})
	}
}

func TestRobotsGateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	unreachable := server.URL
	server.Close()

	httpClient := NewHTTPClient("Test-Crawler/1.0", 2*time.Second)
	defer httpClient.Close()

	gate := NewRobotsGate(httpClient, nil, false)
	if !gate.Allowed(context.Background(), unreachable+"/page") {
		t.Errorf("Expected unreachable robots.txt to allow all")
	}

	// The empty policy is cached
	gate.Allowed(context.Background(), unreachable+"/other")
	if gate.Fetches() != 1 {
		t.Errorf("Expected one fetch attempt, got %d", gate.Fetches())
	}
}

func TestRobotsGateCancelledFetchNotCached(t *testing.T) {
	var hits atomic.Int64
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n", &hits)

	httpClient := NewHTTPClient("Test-Crawler/1.0", 30*time.Second)
	defer httpClient.Close()

	gate := NewRobotsGate(httpClient, nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !gate.Allowed(ctx, server.URL+"/private/page") {
		t.Errorf("Expected a cancelled robots fetch to allow the URL")
	}

	if gate.Allowed(context.Background(), server.URL+"/private/page") {
		t.Errorf("Expected robots.txt to be fetched again and disallow /private/")
	}
	if gate.Fetches() != 2 {
		t.Errorf("Expected two fetch attempts, got %d", gate.Fetches())
	}
	if hits.Load() != 1 {
		t.Errorf("Expected the server to see one robots.txt request, got %d", hits.Load())
	}

	// The completed fetch is cached
	gate.Allowed(context.Background(), server.URL+"/other")
	if gate.Fetches() != 2 {
		t.Errorf("Expected the policy to be cached, got %d fetches", gate.Fetches())
	}
}

func TestRobotsGateFetchesOncePerHost(t *testing.T) {
	var hits atomic.Int64
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n", &hits)

	httpClient := NewHTTPClient("Test-Crawler/1.0", 30*time.Second)
	defer httpClient.Close()

	gate := NewRobotsGate(httpClient, nil, false)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.Allowed(ctx, server.URL+"/private/x") {
				t.Errorf("Expected /private/x to be disallowed")
			}
		}()
	}
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("Expected robots.txt to be requested once, got %d", hits.Load())
	}
}

func TestRobotsGateCrawlDelay(t *testing.T) {
	tests := []struct {
		name          string
		robotsTxt     string
		expectedDelay time.Duration
	}{
		{
			name:          "Valid crawl delay",
			robotsTxt:     "User-agent: *\nCrawl-delay: 5\n",
			expectedDelay: 5 * time.Second,
		},
		{
			name:          "No crawl delay specified",
			robotsTxt:     "User-agent: *\nDisallow: /admin/\n",
			expectedDelay: 100 * time.Millisecond,
		},
		{
			name:          "Fractional crawl delay",
			robotsTxt:     "User-agent: *\nCrawl-delay: 1.5\n",
			expectedDelay: 1500 * time.Millisecond,
		},
		{
			name:          "Other agent's delay ignored",
			robotsTxt:     "User-agent: SlowBot\nCrawl-delay: 9\n",
			expectedDelay: 100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := robotsServer(t, http.StatusOK, tt.robotsTxt, nil)

			u, err := url.Parse(server.URL)
			if err != nil {
				t.Fatalf("Failed to parse server URL: %v", err)
			}

			httpClient := NewHTTPClient("Test-Crawler/1.0", 30*time.Second)
			defer httpClient.Close()
			limiter := NewRateLimiter(100 * time.Millisecond)
			gate := NewRobotsGate(httpClient, limiter, false)

			gate.Allowed(context.Background(), server.URL+"/")

			if delay := limiter.Delay(u.Host); delay != tt.expectedDelay {
				t.Errorf("Delay() = %v, expected %v", delay, tt.expectedDelay)
			}
		})
	}
}
