package config

import "github.com/poiesic/ariel/core"

// RequireModule is the guard called at the top of every operation gated by
// an optional module. It is pure: no I/O happens before the check, and a
// disabled module yields a typed error rather than a driver failure later.
func RequireModule(name string, enabled bool) error {
	if !enabled {
		return &core.ModuleNotEnabledError{Module: name}
	}
	return nil
}
