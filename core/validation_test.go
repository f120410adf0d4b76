package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() *LogbookEntry {
	return &LogbookEntry{
		EntryID:      "elog-1234",
		SourceSystem: "elog",
		Timestamp:    time.Now().Add(-time.Hour),
		Author:       "operator",
		RawText:      "RF trip on cavity 3, reset and ramped back up",
	}
}

func TestValidateEntry(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		require.NoError(t, ValidateEntry(validEntry()))
	})

	t.Run("nil entry", func(t *testing.T) {
		err := ValidateEntry(nil)
		assert.ErrorIs(t, err, ErrInvalidEntry)
	})

	t.Run("empty entry id", func(t *testing.T) {
		entry := validEntry()
		entry.EntryID = ""
		err := ValidateEntry(entry)
		assert.ErrorIs(t, err, ErrInvalidEntry)
		assert.ErrorIs(t, err, ErrEmptyEntryID)
	})

	t.Run("empty source system", func(t *testing.T) {
		entry := validEntry()
		entry.SourceSystem = ""
		assert.ErrorIs(t, ValidateEntry(entry), ErrEmptySourceSystem)
	})

	t.Run("empty raw text", func(t *testing.T) {
		entry := validEntry()
		entry.RawText = ""
		assert.ErrorIs(t, ValidateEntry(entry), ErrEmptyRawText)
	})

	t.Run("future timestamp", func(t *testing.T) {
		entry := validEntry()
		entry.Timestamp = time.Now().Add(time.Hour)
		assert.ErrorIs(t, ValidateEntry(entry), ErrInvalidTimestamp)
	})
}

func TestIsValidTimestamp(t *testing.T) {
	assert.True(t, IsValidTimestamp(time.Now().Add(-time.Minute)))
	assert.False(t, IsValidTimestamp(time.Now().Add(time.Minute)))
}
