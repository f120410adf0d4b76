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


package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/poiesic/ariel/core"
)

// Execer is the minimal database surface a migration needs.
// *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Migration is one idempotent schema change with explicit dependencies.
type Migration struct {
	// Name uniquely identifies the migration.
	Name string

	// DependsOn lists the names of migrations that must apply first.
	DependsOn []string

	// Apply performs the change. It must be safe to re-run.
	Apply func(ctx context.Context, db Execer) error
}

// Runner orders and applies a set of migrations.
type Runner struct {
	migrations []Migration
	logger     *slog.Logger
}

// NewRunner creates a runner over the given migrations.
func NewRunner(migrations []Migration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		migrations: migrations,
		logger:     logger.With("component", "migrate"),
	}
}

// Plan computes the application order with Kahn's algorithm. Ties between
// ready migrations break lexicographically so the plan is deterministic.
// A missing dependency or a cycle yields a *core.ConfigurationError and an
// empty plan.
func (r *Runner) Plan() ([]Migration, error) {
	byName := make(map[string]Migration, len(r.migrations))
	for _, m := range r.migrations {
		if _, dup := byName[m.Name]; dup {
			return nil, &core.ConfigurationError{Reason: fmt.Sprintf("duplicate migration %q", m.Name)}
		}
		byName[m.Name] = m
	}

	inDegree := make(map[string]int, len(r.migrations))
	dependents := make(map[string][]string)
	for _, m := range r.migrations {
		if _, ok := inDegree[m.Name]; !ok {
			inDegree[m.Name] = 0
		}
		for _, dep := range m.DependsOn {
			if _, ok := byName[dep]; !ok {
				return nil, &core.ConfigurationError{
					Reason: fmt.Sprintf("migration %q depends on unknown migration %q", m.Name, dep),
				}
			}
			inDegree[m.Name]++
			dependents[dep] = append(dependents[dep], m.Name)
		}
	}

	// Seed with all zero-in-degree nodes, kept sorted.
	ready := make([]string, 0, len(inDegree))
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]Migration, 0, len(r.migrations))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])

		released := false
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	// Fewer ordered nodes than input nodes means a cycle remains.
	if len(ordered) < len(r.migrations) {
		var cycle []string
		for name, deg := range inDegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, &core.ConfigurationError{
			Reason: fmt.Sprintf("circular migration dependency involving: %s", strings.Join(cycle, ", ")),
		}
	}

	return ordered, nil
}

// Apply plans and applies every migration, one at a time, in dependency
// order. On a cycle, nothing is applied.
func (r *Runner) Apply(ctx context.Context, db Execer) error {
	plan, err := r.Plan()
	if err != nil {
		return err
	}

	for _, m := range plan {
		r.logger.Info("applying migration", "name", m.Name)
		if err := m.Apply(ctx, db); err != nil {
			return &core.QueryError{Op: "migration " + m.Name, Cause: err}
		}
	}

	r.logger.Info("migrations applied", "count", len(plan))
	return nil
}
