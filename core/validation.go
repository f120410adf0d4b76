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


package core

import (
	"errors"
	"fmt"
	"time"
)

// Domain validation errors
var (
	// ErrInvalidEntry indicates a LogbookEntry failed validation.
	ErrInvalidEntry = errors.New("invalid logbook entry")

	// ErrEmptyEntryID indicates the EntryID field is empty.
	ErrEmptyEntryID = errors.New("entry id cannot be empty")

	// ErrEmptySourceSystem indicates the SourceSystem field is empty.
	ErrEmptySourceSystem = errors.New("source system cannot be empty")

	// ErrEmptyRawText indicates the RawText field is empty.
	ErrEmptyRawText = errors.New("raw text cannot be empty")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")
)

// ValidateEntry validates a LogbookEntry according to domain rules.
//
// Validation rules:
//   - EntryID must not be empty
//   - SourceSystem must not be empty
//   - RawText must not be empty
//   - Timestamp must not be in the future
//
// NOT validated (populated later):
//   - Enhancements (empty until enhancement modules run)
//   - ContentHash (computed at upsert time if absent)
func ValidateEntry(entry *LogbookEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if entry.EntryID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyEntryID)
	}

	if entry.SourceSystem == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptySourceSystem)
	}

	if entry.RawText == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyRawText)
	}

	if !IsValidTimestamp(entry.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
