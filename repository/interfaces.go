// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/amirphl/order-sequencer/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// ErrNoSequenceValue is returned when a store acknowledged an increment but
// did not hand back the resulting value.
var ErrNoSequenceValue = errors.New("sequence store returned no value")

// ErrWriteNotDurable is returned when the store applied a write but could
// not confirm it reached stable storage in time.
var ErrWriteNotDurable = errors.New("sequence write not acknowledged as durable")

// ErrDurabilityUnsupported is returned when durable writes are required on
// a client that cannot pin the connection the write was issued on.
var ErrDurabilityUnsupported = errors.New("durable writes require a single-node redis client")

// SequenceCounterRepository defines operations for named monotonic counters.
//
// Increment is the only mutating operation on an existing counter: it
// creates the counter at 0 when missing and adds 1 in a single atomic
// store operation, returning the post-increment value.
type SequenceCounterRepository interface {
	Increment(ctx context.Context, name string) (int64, error)
	ByName(ctx context.Context, name string) (*models.SequenceCounter, error)
	ByFilter(ctx context.Context, filter models.SequenceCounterFilter, orderBy string, limit, offset int) ([]*models.SequenceCounter, error)
	// SaveIfAbsent creates the counter unless one with the same name
	// exists. It reports whether the row was created.
	SaveIfAbsent(ctx context.Context, counter *models.SequenceCounter) (bool, error)
}
