// Package ingestion drives the flow of logbook entries from external
// source systems into storage.
//
// An Adapter streams entries from a source (HTTP API, file export). The
// Scheduler consumes the stream on a poll timer, upserts each entry, and
// runs the enabled enhancement modules against it. Enhancement failures
// are isolated per (entry, module) pair: a failing module marks that pair
// failed and moves on, never aborting the run. Adapter failures are hard
// failures that close the run as failed.
//
// Enhancement work is performed concurrently using a worker pool while
// the run's bookkeeping stays consistent.
package ingestion
