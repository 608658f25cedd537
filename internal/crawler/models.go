package crawler

import "time"

// CrawlState is the lifecycle state of a crawl run
type CrawlState string

const (
	StateSeeded        CrawlState = "seeded"
	StateRunning       CrawlState = "running"
	StateExhausted     CrawlState = "exhausted"      // frontier emptied
	StateBudgetReached CrawlState = "budget_reached" // max_pages pages saved
	StateCancelled     CrawlState = "cancelled"      // caller's context ended the run
	StateAborted       CrawlState = "aborted"        // a document could not be written
)

// Done reports whether the state is terminal
func (s CrawlState) Done() bool {
	switch s {
	case StateExhausted, StateBudgetReached, StateCancelled, StateAborted:
		return true
	}
	return false
}

// FetchOutcome is the result of visiting one candidate
type FetchOutcome int

const (
	OutcomeFetched  FetchOutcome = iota // HTML retrieved
	OutcomeNotHTML                      // retrieved but not an accepted HTML content type
	OutcomeRejected                     // disallowed by robots.txt
	OutcomeFailed                       // transport error or non-2xx status
)

func (o FetchOutcome) String() string {
	switch o {
	case OutcomeFetched:
		return "fetched"
	case OutcomeNotHTML:
		return "not_html"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Error types recorded in the journal
const (
	ErrorTypeRobots  = "robots_disallowed"
	ErrorTypeNetwork = "network_error"
	ErrorTypeStatus  = "http_status"
)

// PageData represents a fetched and saved page
type PageData struct {
	URL          string
	Name         string        // Derived document name in the output directory
	Score        int           // Frontier score when popped
	StatusCode   int           // HTTP status code
	Title        string        // HTML <title> tag content
	ContentType  string        // HTTP Content-Type header
	ContentHash  string        // SHA-256 of the body
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
	ResponseSize int64         // Response body size in bytes
	CrawledAt    time.Time     // Timestamp when crawled (UTC)
}

// LinkData represents a link discovered on a fetched page
type LinkData struct {
	SourceURL    string    // URL of the page containing the link
	TargetURL    string    // Normalized URL the link points to
	AnchorText   string    // Text content of the <a> tag
	Score        int       // Relevance score computed for this occurrence
	DiscoveredAt time.Time // Timestamp when link was discovered
}

// CrawlError represents a discarded candidate
type CrawlError struct {
	URL          string    // URL where error occurred
	ErrorType    string    // robots_disallowed, network_error, http_status
	ErrorMessage string    // Detailed error message
	OccurredAt   time.Time // Error occurrence timestamp (UTC)
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	State          CrawlState
	PagesSaved     int // Pages written to the output directory
	RobotsRejected int
	FetchFailed    int
	NotHTML        int
	LinksQueued    int // New candidates inserted into the frontier
	LinksRescored  int // AddScore calls on queued candidates
	Remaining      int // Candidates left in the frontier
	RobotsFetches  int // robots.txt documents requested
	StartTime      time.Time
	Duration       time.Duration
}

// Discarded returns the number of popped candidates that were not saved
func (s CrawlStats) Discarded() int {
	return s.RobotsRejected + s.FetchFailed + s.NotHTML
}
