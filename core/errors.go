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
	"fmt"
	"time"
)

// ConfigurationError indicates bad or missing configuration: an unparseable
// config file, a circular migration dependency, an unsupported search mode.
type ConfigurationError struct {
	Reason string
	Cause  error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ModuleNotEnabledError indicates an optional module (search mode or
// enhancement) was invoked while disabled in configuration. The check is
// pure and happens before any I/O.
type ModuleNotEnabledError struct {
	Module string
}

func (e *ModuleNotEnabledError) Error() string {
	return fmt.Sprintf("module %q is not enabled", e.Module)
}

// ConnectionError indicates the database could not be reached.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// QueryError wraps a driver-level failure for a named operation.
type QueryError struct {
	Op    string
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error in %s: %v", e.Op, e.Cause)
}

func (e *QueryError) Unwrap() error { return e.Cause }

// TimeoutError indicates a named operation exceeded its time limit.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %s", e.Op, e.Limit)
}

// ExecutionError wraps an unexpected search failure with mode and query
// context.
type ExecutionError struct {
	Mode  string
	Query string
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("search execution failed (mode=%s, query=%q): %v", e.Mode, e.Query, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }
