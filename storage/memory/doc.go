// Package memory provides in-memory implementations of the storage
// repositories.
//
// It exists for tests and dry trials: keyword matching, trigram
// similarity, and cosine similarity are computed in process, with the
// same contracts as the PostgreSQL backend. Not intended for production
// data.
package memory
