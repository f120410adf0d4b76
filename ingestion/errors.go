package ingestion

import "errors"

var (
	// ErrEndOfStream is returned by EntryStream.Next when the stream is
	// exhausted. It signals normal completion, not a failure.
	ErrEndOfStream = errors.New("end of stream")

	// ErrEntryRepositoryRequired is returned when an entry repository is not provided.
	ErrEntryRepositoryRequired = errors.New("entry repository required")

	// ErrRunRepositoryRequired is returned when a run repository is not provided.
	ErrRunRepositoryRequired = errors.New("run repository required")

	// ErrAdapterRequired is returned when a source adapter is not provided.
	ErrAdapterRequired = errors.New("source adapter required")

	// ErrTooManyFailures is returned by Scheduler.Start when consecutive
	// poll failures reach the configured limit.
	ErrTooManyFailures = errors.New("too many consecutive poll failures")
)
