// Package fetch retrieves page HTML over HTTP with bounded retries. Client
// errors (4xx) fail immediately; transient failures are retried with capped
// exponential backoff inside a wall-clock budget.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/transqa/internal/config"
	"github.com/valpere/transqa/internal/qa"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 8 * time.Second
	maxBodyBytes   = 10 << 20 // 10 MiB cap on page HTML
)

// Fetcher retrieves page content. It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	maxAttempts int
	retryBudget time.Duration
}

// New builds a fetcher from configuration.
func New(cfg config.FetcherConfig) *Fetcher {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Fetcher{
		client:      &http.Client{Timeout: cfg.Timeout},
		userAgent:   cfg.UserAgent,
		maxAttempts: attempts,
		retryBudget: cfg.RetryBudget,
	}
}

// Get fetches a URL and returns its HTML content.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (string, error) {
	result, err := f.GetWithMetadata(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// GetWithMetadata fetches a URL and returns the content along with response
// metadata and the page title.
func (f *Fetcher) GetWithMetadata(ctx context.Context, rawURL string) (*qa.FetchResult, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(f.retryBudget)
	backoff := initialBackoff

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		result, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var fe *qa.FetchError
		if errors.As(err, &fe) && !fe.Retryable() {
			return nil, err
		}
		if attempt == f.maxAttempts {
			break
		}
		if f.retryBudget > 0 && time.Now().Add(backoff).After(deadline) {
			slog.Debug("retry budget exhausted", "url", rawURL, "attempt", attempt)
			break
		}

		slog.Debug("retrying fetch", "url", rawURL, "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil, &qa.FetchError{URL: rawURL, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*qa.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &qa.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &qa.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &qa.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &qa.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	content := string(body)
	result := &qa.FetchResult{
		Content:     content,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		LoadTime:    time.Since(start),
		Title:       extractTitle(content),
	}

	slog.Info("fetched page",
		"url", rawURL, "status", resp.StatusCode,
		"bytes", len(body), "elapsed", result.LoadTime)
	return result, nil
}

// Available reports whether a URL answers a HEAD request with a non-error
// status.
func (f *Fetcher) Available(ctx context.Context, rawURL string) bool {
	if err := validateURL(rawURL); err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &qa.FetchError{URL: rawURL, Err: fmt.Errorf("invalid URL: %w", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &qa.FetchError{URL: rawURL, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return &qa.FetchError{URL: rawURL, Err: fmt.Errorf("missing host")}
	}
	return nil
}

func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
