package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func init() {
	// Disable slog output during testing
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	slog.SetDefault(logger)
}

func TestPageProcessor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/test-page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`<html><head><title>Test Page</title></head><body><a href="/x">x</a></body></html>`))

		case "/upper":
			w.Header().Set("Content-Type", "TEXT/HTML; CHARSET=UTF-8")
			_, _ = w.Write([]byte(`<p>upper</p>`))

		case "/latin1":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte(`<p>latin</p>`))

		case "/bare":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<p>bare</p>`))

		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))

		case "/500":
			w.WriteHeader(http.StatusInternalServerError)

		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Not Found"))
		}
	}))
	defer server.Close()

	httpClient := NewHTTPClient("Test-Crawler/1.0", 30*time.Second)
	defer httpClient.Close()

	tests := []struct {
		name    string
		path    string
		lenient bool
		outcome FetchOutcome
	}{
		{"Strict HTML", "/test-page", false, OutcomeFetched},
		{"Strict HTML case-insensitive", "/upper", false, OutcomeFetched},
		{"Strict rejects other charset", "/latin1", false, OutcomeNotHTML},
		{"Strict rejects missing charset", "/bare", false, OutcomeNotHTML},
		{"Lenient accepts other charset", "/latin1", true, OutcomeFetched},
		{"Lenient accepts missing charset", "/bare", true, OutcomeFetched},
		{"JSON is not HTML", "/json", true, OutcomeNotHTML},
		{"404 fails", "/missing", false, OutcomeFailed},
		{"500 fails", "/500", true, OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := NewPageProcessor(httpClient, tt.lenient)
			result := processor.Fetch(context.Background(), server.URL+tt.path)

			if result.Outcome != tt.outcome {
				t.Fatalf("Expected outcome %s, got %s", tt.outcome, result.Outcome)
			}

			switch result.Outcome {
			case OutcomeFetched:
				if result.Page == nil || len(result.Body) == 0 {
					t.Fatal("Expected page data and body")
				}
				if result.Page.StatusCode != http.StatusOK {
					t.Errorf("Expected status 200, got %d", result.Page.StatusCode)
				}
				if result.Page.ResponseSize != int64(len(result.Body)) {
					t.Errorf("Expected response size %d, got %d", len(result.Body), result.Page.ResponseSize)
				}
			case OutcomeFailed:
				if result.Error == nil || result.Error.ErrorType != ErrorTypeStatus {
					t.Errorf("Expected http_status error, got %+v", result.Error)
				}
			case OutcomeNotHTML, OutcomeRejected:
				if result.Page != nil {
					t.Error("Expected no page data")
				}
			}
		})
	}
}

func TestPageProcessorNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	unreachable := server.URL
	server.Close()

	httpClient := NewHTTPClient("Test-Crawler/1.0", 2*time.Second)
	defer httpClient.Close()

	result := NewPageProcessor(httpClient, false).Fetch(context.Background(), unreachable+"/page")
	if result.Outcome != OutcomeFailed {
		t.Fatalf("Expected failed outcome, got %s", result.Outcome)
	}
	if result.Error == nil || result.Error.ErrorType != ErrorTypeNetwork {
		t.Errorf("Expected network_error, got %+v", result.Error)
	}
}

func TestPageProcessorOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>far too long</body></html>"))
	}))
	defer server.Close()

	httpClient := NewHTTPClient("Test-Crawler/1.0", 2*time.Second)
	httpClient.maxBodySize = 10
	defer httpClient.Close()

	result := NewPageProcessor(httpClient, false).Fetch(context.Background(), server.URL+"/big.html")
	if result.Outcome != OutcomeFailed {
		t.Fatalf("Expected failed outcome, got %s", result.Outcome)
	}
	if result.Body != nil {
		t.Errorf("Expected no body for an oversized page, got %d bytes", len(result.Body))
	}
	if result.Error == nil || result.Error.ErrorType != ErrorTypeNetwork {
		t.Errorf("Expected network_error, got %+v", result.Error)
	}
}

func TestFetchOutcomeString(t *testing.T) {
	tests := map[FetchOutcome]string{
		OutcomeFetched:   "fetched",
		OutcomeNotHTML:   "not_html",
		OutcomeRejected:  "rejected",
		OutcomeFailed:    "failed",
		FetchOutcome(99): "unknown",
	}
	for outcome, expected := range tests {
		if outcome.String() != expected {
			t.Errorf("Expected %q, got %q", expected, outcome.String())
		}
	}
}
