// Package agent defines the contract between the logbook engine and an
// external agent runtime. The engine contributes tools and typed results;
// the reasoning loop itself is owned by the collaborating executor.
package agent
