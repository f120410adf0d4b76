package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/ariel/core"
)

// FileAdapter streams entries from a JSON-lines export file, one entry
// object per line. Useful for seeding a fresh database and for offline
// source systems that dump periodic exports.
type FileAdapter struct {
	path         string
	sourceSystem string
	logger       *slog.Logger
}

// NewFileAdapter creates an adapter reading from the given JSON-lines file.
func NewFileAdapter(path, sourceSystem string) (*FileAdapter, error) {
	if path == "" {
		return nil, &core.ConfigurationError{Reason: "ingestion.source_url (file path) is required for the file adapter"}
	}
	return &FileAdapter{
		path:         path,
		sourceSystem: sourceSystem,
		logger:       slog.Default().With("component", "file-adapter"),
	}, nil
}

// Name identifies the adapter kind.
func (a *FileAdapter) Name() string {
	return "file"
}

// Stream reads and parses the whole file, filters by since, and returns
// an in-memory stream. Export files are small enough that lazy reading
// buys nothing over a simple scan.
func (a *FileAdapter) Stream(ctx context.Context, since *time.Time) (EntryStream, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open export %s: %w", a.path, err)
	}
	defer f.Close()

	var entries []*core.LogbookEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var wire wireEntry
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, fmt.Errorf("parse export %s line %d: %w", a.path, line, err)
		}

		entry := wire.toEntry(a.sourceSystem)
		if since != nil && !entry.Timestamp.After(*since) {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read export %s: %w", a.path, err)
	}

	a.logger.Debug("loaded export file", "path", a.path, "entries", len(entries))
	return &sliceStream{entries: entries}, nil
}
