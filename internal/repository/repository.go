// Package repository provides data access interfaces and PostgreSQL
// implementations for the paper tracker.
//
// Repositories accept the DBTX interface so they work with both a
// connection pool and a transaction. All methods return domain errors
// (domain.ErrNotFound, domain.ErrAlreadyExists, domain.ErrInvalidInput)
// wrapped with context; database errors are wrapped with %w.
package repository

import (
	"github.com/kshitijsachan/papers/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Pass a pgx.Tx from database.DB.WithTransaction for atomic
// multi-statement operations.
type DBTX = database.DBTX
