// Package core defines the domain model for the ariel logbook engine.
//
// It contains the entities shared by every layer (logbook entries,
// ingestion runs, retrieval hits), the cross-cutting error taxonomy,
// and domain validation rules. The package has no I/O dependencies.
package core
