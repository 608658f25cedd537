package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"
)

// strictContentType is the only Content-Type accepted outside lenient mode
const strictContentType = "text/html; charset=utf-8"

// FetchResult is the outcome of fetching one URL
type FetchResult struct {
	Outcome  FetchOutcome
	Page     *PageData // Set when Outcome is OutcomeFetched
	Body     []byte    // Set when Outcome is OutcomeFetched
	FinalURL string    // URL after redirects
	Error    *CrawlError
}

// DefaultPageProcessor implements the PageProcessor interface
type DefaultPageProcessor struct {
	httpClient         *HTTPClient
	lenientContentType bool
}

// NewPageProcessor creates a page processor. In lenient mode any text/html
// media type is accepted regardless of its parameters.
func NewPageProcessor(httpClient *HTTPClient, lenientContentType bool) PageProcessor {
	return &DefaultPageProcessor{
		httpClient:         httpClient,
		lenientContentType: lenientContentType,
	}
}

// Fetch downloads url and classifies the response
func (p *DefaultPageProcessor) Fetch(ctx context.Context, url string) *FetchResult {
	resp, err := p.httpClient.Get(ctx, url)
	if err != nil {
		return &FetchResult{
			Outcome:  OutcomeFailed,
			FinalURL: url,
			Error: &CrawlError{
				URL:          url,
				ErrorType:    ErrorTypeNetwork,
				ErrorMessage: err.Error(),
				OccurredAt:   time.Now().UTC(),
			},
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &FetchResult{
			Outcome:  OutcomeFailed,
			FinalURL: resp.FinalURL,
			Error: &CrawlError{
				URL:          url,
				ErrorType:    ErrorTypeStatus,
				ErrorMessage: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
				OccurredAt:   time.Now().UTC(),
			},
		}
	}

	if !p.isHTML(resp.ContentType) {
		slog.Debug("Skipping non-HTML content", "url", url, "content_type", resp.ContentType)
		return &FetchResult{Outcome: OutcomeNotHTML, FinalURL: resp.FinalURL}
	}

	return &FetchResult{
		Outcome:  OutcomeFetched,
		Body:     resp.Body,
		FinalURL: resp.FinalURL,
		Page: &PageData{
			URL:          url,
			StatusCode:   resp.StatusCode,
			ContentType:  resp.ContentType,
			TTFB:         resp.Metrics.TTFB,
			DownloadTime: resp.Metrics.DownloadTime,
			ResponseSize: int64(len(resp.Body)),
			CrawledAt:    time.Now().UTC(),
		},
	}
}

func (p *DefaultPageProcessor) isHTML(contentType string) bool {
	if !p.lenientContentType {
		return strings.EqualFold(strings.TrimSpace(contentType), strictContentType)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}
