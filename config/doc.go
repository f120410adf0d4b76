// Package config loads and validates the hierarchical engine configuration.
//
// Configuration is read from a YAML file with environment variable
// expansion ($VAR / ${VAR}), parsed once at startup into typed structs.
// Unknown module-specific keys are retained in an explicit Settings bag
// rather than accessed dynamically.
package config
