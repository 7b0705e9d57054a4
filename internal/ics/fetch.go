package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "famcal/internal/log"
)

// Fetcher downloads a remote ICS file for a one-off import.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher returns a Fetcher. client may be nil; maxBytes <= 0 means
// 4 MiB.
func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch GETs rawURL and returns its body. Only http and https (and the
// webcal alias for https) are accepted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("ics: bad url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	case "webcal":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("ics: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("ics: url has no host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", redactURL(u.String()))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: fetch %s: %s", redactURL(u.String()), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("ics: body exceeds %d bytes", f.maxBytes)
	}

	appLog.Info("ics fetch success", "url", redactURL(u.String()), "bytes", len(body))
	return body, nil
}

// redactURL hides path and query of a calendar URL for logging; private
// feeds usually carry their secret there.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
