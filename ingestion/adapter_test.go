package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, stream EntryStream) []*core.LogbookEntry {
	t.Helper()
	defer stream.Close()

	var entries []*core.LogbookEntry
	for {
		entry, err := stream.Next(context.Background())
		if err == ErrEndOfStream {
			return entries
		}
		require.NoError(t, err)
		entries = append(entries, entry)
	}
}

func TestFileAdapter(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	writeExport := func(t *testing.T, entries []wireEntry) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "export.jsonl")
		f, err := os.Create(path)
		require.NoError(t, err)
		enc := json.NewEncoder(f)
		for _, e := range entries {
			require.NoError(t, enc.Encode(e))
		}
		require.NoError(t, f.Close())
		return path
	}

	t.Run("streams all entries without since", func(t *testing.T) {
		path := writeExport(t, []wireEntry{
			{EntryID: "e1", Timestamp: now.Add(-2 * time.Hour), Author: "ops", RawText: "first"},
			{EntryID: "e2", Timestamp: now.Add(-time.Hour), Author: "ops", RawText: "second"},
		})

		adapter, err := NewFileAdapter(path, "exported-log")
		require.NoError(t, err)
		assert.Equal(t, "file", adapter.Name())

		stream, err := adapter.Stream(context.Background(), nil)
		require.NoError(t, err)

		entries := drain(t, stream)
		require.Len(t, entries, 2)
		assert.Equal(t, "e1", entries[0].EntryID)
		assert.Equal(t, "exported-log", entries[0].SourceSystem)
	})

	t.Run("since filters older entries", func(t *testing.T) {
		path := writeExport(t, []wireEntry{
			{EntryID: "old", Timestamp: now.Add(-2 * time.Hour), RawText: "old"},
			{EntryID: "new", Timestamp: now, RawText: "new"},
		})

		adapter, err := NewFileAdapter(path, "exported-log")
		require.NoError(t, err)

		since := now.Add(-time.Hour)
		stream, err := adapter.Stream(context.Background(), &since)
		require.NoError(t, err)

		entries := drain(t, stream)
		require.Len(t, entries, 1)
		assert.Equal(t, "new", entries[0].EntryID)
	})

	t.Run("wire source system wins over default", func(t *testing.T) {
		path := writeExport(t, []wireEntry{
			{EntryID: "e1", SourceSystem: "upstream", Timestamp: now, RawText: "text"},
		})

		adapter, err := NewFileAdapter(path, "fallback")
		require.NoError(t, err)

		stream, err := adapter.Stream(context.Background(), nil)
		require.NoError(t, err)

		entries := drain(t, stream)
		require.Len(t, entries, 1)
		assert.Equal(t, "upstream", entries[0].SourceSystem)
	})

	t.Run("empty path rejected", func(t *testing.T) {
		_, err := NewFileAdapter("", "x")
		var cfgErr *core.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("malformed line surfaces with line number", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o600))

		adapter, err := NewFileAdapter(path, "x")
		require.NoError(t, err)

		_, err = adapter.Stream(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1")
	})
}

func TestHTTPAdapter(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("fetches entries and passes since", func(t *testing.T) {
		var gotSince string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSince = r.URL.Query().Get("since")
			json.NewEncoder(w).Encode([]wireEntry{
				{EntryID: "e1", Timestamp: now, Author: "ops", RawText: "pump inspection"},
			})
		}))
		defer server.Close()

		adapter, err := NewHTTPAdapter(&config.IngestionConfig{
			SourceURL:    server.URL,
			SourceSystem: "ops-log",
		})
		require.NoError(t, err)
		assert.Equal(t, "http", adapter.Name())

		since := now.Add(-time.Hour)
		stream, err := adapter.Stream(context.Background(), &since)
		require.NoError(t, err)

		entries := drain(t, stream)
		require.Len(t, entries, 1)
		assert.Equal(t, "e1", entries[0].EntryID)
		assert.Equal(t, "ops-log", entries[0].SourceSystem)
		assert.Equal(t, since.Format(time.RFC3339), gotSince)
	})

	t.Run("chunked windows page through history", func(t *testing.T) {
		var requests []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests = append(requests, r.URL.Query().Get("since")+"|"+r.URL.Query().Get("until"))
			json.NewEncoder(w).Encode([]wireEntry{
				{EntryID: "e" + r.URL.Query().Get("since"), Timestamp: now, RawText: "entry"},
			})
		}))
		defer server.Close()

		adapter, err := NewHTTPAdapter(&config.IngestionConfig{
			SourceURL:    server.URL,
			SourceSystem: "ops-log",
			ChunkDays:    7,
		})
		require.NoError(t, err)

		since := now.Add(-10 * 24 * time.Hour)
		stream, err := adapter.Stream(context.Background(), &since)
		require.NoError(t, err)

		entries := drain(t, stream)
		// 10 days of history in 7-day windows: one bounded, one open.
		require.Len(t, requests, 2)
		assert.Len(t, entries, 2)
		assert.Contains(t, requests[0], "|"+since.Add(7*24*time.Hour).Format(time.RFC3339))
		assert.True(t, strings.HasSuffix(requests[1], "|")) // Final window has no until bound
	})

	t.Run("retries transient failures", func(t *testing.T) {
		attempts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode([]wireEntry{{EntryID: "e1", Timestamp: now, RawText: "ok"}})
		}))
		defer server.Close()

		adapter, err := NewHTTPAdapter(&config.IngestionConfig{
			SourceURL:    server.URL,
			SourceSystem: "ops-log",
			MaxRetries:   2,
		})
		require.NoError(t, err)

		stream, err := adapter.Stream(context.Background(), nil)
		require.NoError(t, err)

		entries := drain(t, stream)
		assert.Len(t, entries, 1)
		assert.Equal(t, 2, attempts)
	})

	t.Run("exhausted retries surface the failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		adapter, err := NewHTTPAdapter(&config.IngestionConfig{
			SourceURL:    server.URL,
			SourceSystem: "ops-log",
		})
		require.NoError(t, err)

		stream, err := adapter.Stream(context.Background(), nil)
		require.NoError(t, err)
		defer stream.Close()

		_, err = stream.Next(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("missing source url rejected", func(t *testing.T) {
		_, err := NewHTTPAdapter(&config.IngestionConfig{})
		var cfgErr *core.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})
}
