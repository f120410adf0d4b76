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


package postgres

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/poiesic/ariel/core"
)

// Backend wraps a pgx connection pool shared by all repositories.
type Backend struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenBackend connects to PostgreSQL at uri and verifies the connection.
// pgvector types are registered on every pooled connection so []float32
// vectors round-trip without manual encoding.
func OpenBackend(ctx context.Context, uri string) (*Backend, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, &core.ConfigurationError{Reason: "parse database uri", Cause: err}
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// Registration fails on databases without the vector extension;
		// those still serve keyword-only deployments.
		if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
			slog.Debug("pgvector types not registered", "err", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &core.ConnectionError{Cause: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &core.ConnectionError{Cause: err}
	}

	return &Backend{
		pool:   pool,
		logger: slog.Default().With("component", "postgres-backend"),
	}, nil
}

// Pool exposes the underlying pool for the migration runner.
func (b *Backend) Pool() *pgxpool.Pool {
	return b.pool
}

// Close closes the pool. Repositories created from this backend become
// unusable afterwards.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

// wrapErr maps driver failures onto the core taxonomy: unreachable
// servers become *core.ConnectionError, everything else *core.QueryError.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return &core.ConnectionError{Cause: err}
	}

	return &core.QueryError{Op: op, Cause: err}
}

// newVector adapts a []float32 for a pgvector column parameter.
func newVector(v []float32) pgvector.Vector {
	return pgvector.NewVector(v)
}
