// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/core"
)

// wireEntry is the JSON shape logbook sources expose over HTTP.
type wireEntry struct {
	EntryID      string            `json:"entry_id"`
	SourceSystem string            `json:"source_system"`
	Timestamp    time.Time         `json:"timestamp"`
	Author       string            `json:"author"`
	Title        string            `json:"title,omitempty"`
	RawText      string            `json:"raw_text"`
	Attachments  []core.Attachment `json:"attachments,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (w *wireEntry) toEntry(defaultSource string) *core.LogbookEntry {
	source := w.SourceSystem
	if source == "" {
		source = defaultSource
	}
	return &core.LogbookEntry{
		EntryID:      w.EntryID,
		SourceSystem: source,
		Timestamp:    w.Timestamp,
		Author:       w.Author,
		Title:        w.Title,
		RawText:      w.RawText,
		Attachments:  w.Attachments,
		Metadata:     w.Metadata,
	}
}

// HTTPAdapter streams entries from an HTTP source that serves JSON entry
// arrays filtered by a time window. Long histories are fetched in windows
// of chunkDays so a single oversized response can't stall a poll.
type HTTPAdapter struct {
	client       *http.Client
	baseURL      string
	sourceSystem string
	chunkDays    int
	maxRetries   int
	retryDelay   time.Duration
	logger       *slog.Logger
}

// NewHTTPAdapter creates an adapter for the configured HTTP source.
func NewHTTPAdapter(cfg *config.IngestionConfig) (*HTTPAdapter, error) {
	if cfg.SourceURL == "" {
		return nil, &core.ConfigurationError{Reason: "ingestion.source_url is required for the http adapter"}
	}
	if _, err := url.Parse(cfg.SourceURL); err != nil {
		return nil, &core.ConfigurationError{Reason: fmt.Sprintf("ingestion.source_url %q is not a valid URL", cfg.SourceURL), Cause: err}
	}

	timeout := cfg.RequestTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAdapter{
		client:       &http.Client{Timeout: timeout},
		baseURL:      cfg.SourceURL,
		sourceSystem: cfg.SourceSystem,
		chunkDays:    cfg.ChunkDays,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay(),
		logger:       slog.Default().With("component", "http-adapter"),
	}, nil
}

// Name identifies the adapter kind.
func (a *HTTPAdapter) Name() string {
	return "http"
}

// Stream opens a lazy stream over the source. Requests are issued window
// by window as the stream is consumed, not up front.
func (a *HTTPAdapter) Stream(ctx context.Context, since *time.Time) (EntryStream, error) {
	return &httpStream{
		adapter: a,
		since:   since,
		now:     time.Now().UTC(),
	}, nil
}

// httpStream pages through time windows of the source. Each window is one
// HTTP request; entries are drained from the current window before the
// next request is issued.
type httpStream struct {
	adapter *HTTPAdapter
	since   *time.Time
	now     time.Time

	buffer []*core.LogbookEntry
	pos    int
	cursor *time.Time // Start of the next window; nil before the first fetch
	done   bool
}

func (s *httpStream) Next(ctx context.Context) (*core.LogbookEntry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.pos < len(s.buffer) {
			entry := s.buffer[s.pos]
			s.pos++
			return entry, nil
		}
		if s.done {
			return nil, ErrEndOfStream
		}
		if err := s.fetchNextWindow(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *httpStream) Close() error {
	s.buffer = nil
	s.done = true
	return nil
}

// fetchNextWindow issues one windowed request and refills the buffer.
// With no since bound, or no chunking configured, the whole remaining
// range is fetched in a single request.
func (s *httpStream) fetchNextWindow(ctx context.Context) error {
	start := s.cursor
	if start == nil {
		start = s.since
	}

	var end *time.Time
	if start != nil && s.adapter.chunkDays > 0 {
		windowEnd := start.Add(time.Duration(s.adapter.chunkDays) * 24 * time.Hour)
		if windowEnd.Before(s.now) {
			end = &windowEnd
		}
	}

	entries, err := s.adapter.fetch(ctx, start, end)
	if err != nil {
		return err
	}

	s.buffer = entries
	s.pos = 0

	if end == nil {
		s.done = true
	} else {
		s.cursor = end
	}
	return nil
}

// fetch performs one request with retry on transport failure.
func (a *HTTPAdapter) fetch(ctx context.Context, since, until *time.Time) ([]*core.LogbookEntry, error) {
	reqURL, err := a.buildURL(since, until)
	if err != nil {
		return nil, err
	}

	var lastErr error
	attempts := a.maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			a.logger.Warn("retrying source fetch", "attempt", attempt+1, "url", reqURL, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.retryDelay):
			}
		}

		entries, err := a.fetchOnce(ctx, reqURL)
		if err == nil {
			return entries, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch %s: %w", reqURL, lastErr)
}

func (a *HTTPAdapter) fetchOnce(ctx context.Context, reqURL string) ([]*core.LogbookEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned status %d", resp.StatusCode)
	}

	var wires []wireEntry
	if err := json.NewDecoder(resp.Body).Decode(&wires); err != nil {
		return nil, fmt.Errorf("decode source response: %w", err)
	}

	entries := make([]*core.LogbookEntry, len(wires))
	for i := range wires {
		entries[i] = wires[i].toEntry(a.sourceSystem)
	}
	return entries, nil
}

func (a *HTTPAdapter) buildURL(since, until *time.Time) (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	if until != nil {
		q.Set("until", until.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
