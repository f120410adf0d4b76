// Package migrate applies dependency-ordered, idempotent schema
// migrations.
//
// Each migration declares a name and the names of the migrations it
// depends on. The runner computes an application order with Kahn's
// topological sort; a dependency cycle is a configuration error and
// nothing is applied. Which optional migrations exist at all is driven by
// the enabled modules in configuration (for example, a per-model embedding
// table migration exists only when that model is configured).
package migrate
